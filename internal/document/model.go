package document

import (
	"time"

	"github.com/google/uuid"

	"github.com/mkrylov/docpress/internal/compress"
)

// Status is the compression lifecycle state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Terminal reports whether no further automatic transition occurs.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Document is the metadata record for an uploaded file plus its optional
// derived compressed artifact. CompressedPath and CompressedSizeBytes are set
// if and only if CompressionStatus is StatusCompleted.
type Document struct {
	ID                  uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	OriginalFilename    string    `json:"original_filename" gorm:"not null"`
	MimeType            string    `json:"mime_type" gorm:"not null"`
	SizeBytes           int64     `json:"size_bytes" gorm:"not null;check:size_bytes >= 0"`
	CompressedSizeBytes *int64    `json:"compressed_size_bytes,omitempty"`
	OriginalPath        string    `json:"original_path" gorm:"not null"`
	CompressedPath      *string   `json:"compressed_path,omitempty"`
	CompressionStatus   Status    `json:"compression_status" gorm:"type:text;not null;default:'pending';check:compression_status IN ('pending', 'processing', 'completed', 'failed', 'skipped')"`
	HasError            bool      `json:"has_error" gorm:"not null;default:false"`
	ErrorMessage        *string   `json:"error_message,omitempty" gorm:"type:text"`
	TypeID              uuid.UUID `json:"type_id" gorm:"type:uuid;not null;index"`
	CreatedAt           time.Time `json:"created_at" gorm:"not null"`
}

// Type is the per-document-type compression configuration. Rows are
// read-mostly admin data; the policy registry caches them.
type Type struct {
	ID                    uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	Name                  string          `json:"name" gorm:"not null;uniqueIndex"`
	CompressionLevel      int             `json:"compression_level" gorm:"not null;default:6"`
	CompressionMethod     compress.Method `json:"compression_method" gorm:"type:text;not null;default:'gzip';check:compression_method IN ('gzip', 'zstd', 'lz4', 'none')"`
	MinSizeForCompression int64           `json:"min_size_for_compression" gorm:"not null;default:10240"`
	DefaultPriority       string          `json:"default_priority" gorm:"type:text;not null;default:'normal'"`
	CreatedAt             time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt             time.Time       `json:"updated_at" gorm:"not null"`
}

// TableName keeps the table name aligned with the documents table prefix.
func (Type) TableName() string { return "document_types" }
