package queue

import (
	"time"

	"github.com/google/uuid"
)

// Priority of a compression job. Stored as its numeric rank so the claim
// query can order on it directly.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Rank maps a priority onto its stored ordering value.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 10
	case PriorityLow:
		return 1
	default:
		return 5
	}
}

// PriorityFromRank is the inverse of Rank. Unknown ranks map to normal.
func PriorityFromRank(rank int) Priority {
	switch {
	case rank >= 8:
		return PriorityHigh
	case rank <= 2:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// ParsePriority converts a stored priority label, defaulting to normal.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityHigh:
		return Priority(s)
	default:
		return PriorityNormal
	}
}

// Status is the job state machine value. Valid transitions:
// queued -> running (claim), running -> completed (terminal),
// running -> queued (retry below max attempts), running -> failed (terminal).
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Active reports whether the job still occupies its document's single
// active-job slot.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusRunning
}

// Job is one durable unit of compression work tied to a document. At most
// one active job exists per document at any instant.
type Job struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	DocumentID    uuid.UUID  `json:"document_id" gorm:"type:uuid;not null;index"`
	Priority      int        `json:"priority" gorm:"not null;default:5;index:idx_jobs_claim,priority:2"`
	Status        Status     `json:"status" gorm:"type:text;not null;default:'queued';check:status IN ('queued', 'running', 'completed', 'failed');index:idx_jobs_claim,priority:1"`
	QueuedAt      time.Time  `json:"queued_at" gorm:"not null"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"not null"`
	Attempts      int        `json:"attempts" gorm:"not null;default:0"`
	ErrorMessage  *string    `json:"error_message,omitempty" gorm:"type:text"`
}

// PriorityLabel exposes the stored rank as its label.
func (j Job) PriorityLabel() Priority { return PriorityFromRank(j.Priority) }
