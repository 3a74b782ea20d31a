package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrDuplicateJob      = errors.New("active job already exists for document")
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job transition")
)

const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 30 * time.Second
)

// Migrate creates the jobs table plus the partial unique index backing the
// one-active-job-per-document invariant. The transactional check in Enqueue
// gives the friendly error; the index closes the race two concurrent
// transactions would otherwise slip through.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Job{}); err != nil {
		return err
	}
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_one_active
		ON jobs (document_id) WHERE status IN ('queued', 'running')`).Error
}

// Queue is the durable priority queue of compression jobs. All transitions
// are conditional updates against the backing store, so concurrent workers
// can never claim the same job and restarts lose nothing.
type Queue interface {
	// Enqueue inserts a queued job for the document. It fails with
	// ErrDuplicateJob when an active (queued or running) job exists.
	Enqueue(ctx context.Context, documentID uuid.UUID, priority Priority) (Job, error)

	// Dequeue claims the eligible job with the highest priority, oldest
	// queued_at first within a priority. Returns nil when nothing is
	// eligible.
	Dequeue(ctx context.Context) (*Job, error)

	// MarkRunning transitions queued -> running and sets started_at. It is
	// the conditional claim underlying Dequeue; it fails with
	// ErrInvalidTransition when the job is no longer queued.
	MarkRunning(ctx context.Context, jobID uuid.UUID) error

	// Complete transitions running -> completed. A second call on an
	// already-completed job is rejected with ErrInvalidTransition and
	// changes nothing.
	Complete(ctx context.Context, jobID uuid.UUID) error

	// FailRetry records the attempt failure. Below MaxAttempts the job goes
	// back to queued with a backoff delay; otherwise it is terminal failed.
	// The updated job is returned so the caller can react to the terminal
	// state.
	FailRetry(ctx context.Context, jobID uuid.UUID, cause string) (Job, error)

	// RecoverOrphans requeues jobs left running by a prior crash, consuming
	// one retry attempt each. Jobs already at MaxAttempts go terminal
	// failed; their document ids are returned so the caller can mark the
	// documents failed too. Returns (recovered, failed document ids).
	RecoverOrphans(ctx context.Context) (int, []uuid.UUID, error)

	// EntryByDocument returns the most recent job for a document, nil when
	// none exists.
	EntryByDocument(ctx context.Context, documentID uuid.UUID) (*Job, error)

	// Remove cancels a still-queued job for the document. Running or
	// terminal jobs are left alone; reports whether a job was removed.
	Remove(ctx context.Context, documentID uuid.UUID) (bool, error)

	// UpdatePriority changes the priority of the document's queued job.
	UpdatePriority(ctx context.Context, documentID uuid.UUID, priority Priority) (bool, error)

	// BulkUpdatePriority applies UpdatePriority across documents, returning
	// the number of jobs updated.
	BulkUpdatePriority(ctx context.Context, documentIDs []uuid.UUID, priority Priority) (int64, error)

	// WithTx returns a copy of the queue bound to tx, so a job transition
	// can commit together with a document transition.
	WithTx(tx *gorm.DB) Queue
}

// Options tune the retry behaviour.
type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Producer     Producer // optional; enqueue events for worker wake-up
}

type gormQueue struct {
	db       *gorm.DB
	opts     Options
	producer Producer
}

func New(db *gorm.DB, opts Options) Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &gormQueue{db: db, opts: opts, producer: opts.Producer}
}

func (q *gormQueue) WithTx(tx *gorm.DB) Queue {
	return &gormQueue{db: tx, opts: q.opts, producer: q.producer}
}

func (q *gormQueue) Enqueue(ctx context.Context, documentID uuid.UUID, priority Priority) (Job, error) {
	now := time.Now()
	job := Job{
		ID:            uuid.New(),
		DocumentID:    documentID,
		Priority:      priority.Rank(),
		Status:        StatusQueued,
		QueuedAt:      now,
		NextAttemptAt: now,
	}

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&Job{}).
			Where("document_id = ? AND status IN ?", documentID, []Status{StatusQueued, StatusRunning}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrDuplicateJob
		}
		return tx.Create(&job).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Job{}, ErrDuplicateJob
		}
		return Job{}, err
	}

	if q.producer != nil {
		// Wake-up only; the queue row is already durable, so a lost event
		// merely delays the job until the next poll.
		_ = q.producer.JobQueued(ctx, JobQueuedEvent{
			JobID:      job.ID.String(),
			DocumentID: documentID.String(),
			Priority:   string(priority),
			QueuedAt:   job.QueuedAt,
		})
	}

	return job, nil
}

func (q *gormQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		var job Job
		err := q.db.WithContext(ctx).
			Where("status = ? AND next_attempt_at <= ?", StatusQueued, time.Now()).
			Order("priority DESC, queued_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		switch err := q.MarkRunning(ctx, job.ID); {
		case err == nil:
			return q.reload(ctx, job.ID)
		case errors.Is(err, ErrInvalidTransition):
			// Lost the claim race to another worker; pick the next candidate.
			continue
		default:
			return nil, err
		}
	}
}

func (q *gormQueue) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	res := q.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, StatusQueued).
		Updates(map[string]interface{}{
			"status":     StatusRunning,
			"started_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return q.transitionError(ctx, jobID, StatusRunning)
	}
	return nil
}

func (q *gormQueue) Complete(ctx context.Context, jobID uuid.UUID) error {
	res := q.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", jobID, StatusRunning).
		Updates(map[string]interface{}{
			"status":       StatusCompleted,
			"completed_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return q.transitionError(ctx, jobID, StatusCompleted)
	}
	return nil
}

func (q *gormQueue) FailRetry(ctx context.Context, jobID uuid.UUID, cause string) (Job, error) {
	var out Job
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job Job
		if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		if job.Status != StatusRunning {
			return fmt.Errorf("%w: %s -> retry", ErrInvalidTransition, job.Status)
		}

		attempts := job.Attempts + 1
		updates := map[string]interface{}{
			"attempts":      attempts,
			"error_message": cause,
		}
		if attempts < q.opts.MaxAttempts {
			updates["status"] = StatusQueued
			updates["started_at"] = nil
			updates["next_attempt_at"] = time.Now().Add(q.backoff(attempts))
		} else {
			updates["status"] = StatusFailed
			updates["completed_at"] = time.Now()
		}

		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", jobID, StatusRunning).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: job changed concurrently", ErrInvalidTransition)
		}
		return tx.Where("id = ?", jobID).First(&out).Error
	})
	if err != nil {
		return Job{}, err
	}
	return out, nil
}

// backoff grows linearly with the attempt count.
func (q *gormQueue) backoff(attempts int) time.Duration {
	return time.Duration(attempts) * q.opts.RetryBackoff
}

func (q *gormQueue) RecoverOrphans(ctx context.Context) (int, []uuid.UUID, error) {
	recovered := 0
	var failedDocs []uuid.UUID

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orphans []Job
		if err := tx.Where("status = ?", StatusRunning).Find(&orphans).Error; err != nil {
			return err
		}

		for _, job := range orphans {
			attempts := job.Attempts + 1
			updates := map[string]interface{}{
				"attempts":      attempts,
				"error_message": "requeued after unclean shutdown",
			}
			if attempts < q.opts.MaxAttempts {
				updates["status"] = StatusQueued
				updates["started_at"] = nil
				updates["next_attempt_at"] = time.Now()
				recovered++
			} else {
				updates["status"] = StatusFailed
				updates["completed_at"] = time.Now()
				failedDocs = append(failedDocs, job.DocumentID)
			}
			if err := tx.Model(&Job{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return recovered, failedDocs, nil
}

func (q *gormQueue) EntryByDocument(ctx context.Context, documentID uuid.UUID) (*Job, error) {
	var job Job
	err := q.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("queued_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *gormQueue) Remove(ctx context.Context, documentID uuid.UUID) (bool, error) {
	res := q.db.WithContext(ctx).
		Where("document_id = ? AND status = ?", documentID, StatusQueued).
		Delete(&Job{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (q *gormQueue) UpdatePriority(ctx context.Context, documentID uuid.UUID, priority Priority) (bool, error) {
	res := q.db.WithContext(ctx).Model(&Job{}).
		Where("document_id = ? AND status = ?", documentID, StatusQueued).
		Update("priority", priority.Rank())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (q *gormQueue) BulkUpdatePriority(ctx context.Context, documentIDs []uuid.UUID, priority Priority) (int64, error) {
	if len(documentIDs) == 0 {
		return 0, nil
	}
	res := q.db.WithContext(ctx).Model(&Job{}).
		Where("document_id IN ? AND status = ?", documentIDs, StatusQueued).
		Update("priority", priority.Rank())
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (q *gormQueue) reload(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	var job Job
	if err := q.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// isUniqueViolation matches the active-job index violation across drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

func (q *gormQueue) transitionError(ctx context.Context, jobID uuid.UUID, target Status) error {
	var job Job
	err := q.db.WithContext(ctx).Where("id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrJobNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, target)
}
