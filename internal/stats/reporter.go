package stats

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mkrylov/docpress/internal/document"
	"github.com/mkrylov/docpress/internal/queue"
)

// Overview aggregates compression outcomes across all documents. Byte sums
// cover completed documents only, since those are the ones with a derived
// artifact to compare against.
type Overview struct {
	PendingCount    int64   `json:"pending_count"`
	ProcessingCount int64   `json:"processing_count"`
	CompletedCount  int64   `json:"completed_count"`
	FailedCount     int64   `json:"failed_count"`
	SkippedCount    int64   `json:"skipped_count"`
	TotalOriginal   int64   `json:"total_original_bytes"`
	TotalCompressed int64   `json:"total_compressed_bytes"`
	SavingsPercent  float64 `json:"savings_percent"`
}

// TypeAnalysis is one row of the per-type breakdown.
type TypeAnalysis struct {
	TypeID          string  `json:"type_id"`
	TypeName        string  `json:"type_name"`
	DocumentCount   int64   `json:"document_count"`
	CompressedCount int64   `json:"compressed_count"`
	FailedCount     int64   `json:"failed_count"`
	SkippedCount    int64   `json:"skipped_count"`
	TotalOriginal   int64   `json:"total_original_bytes"`
	TotalCompressed int64   `json:"total_compressed_bytes"`
	SavingsPercent  float64 `json:"savings_percent"`
}

// Reporter serves the operational read API. It only queries; it never
// mutates the store or the queue.
type Reporter struct {
	db *gorm.DB
}

func NewReporter(db *gorm.DB) *Reporter {
	return &Reporter{db: db}
}

// Overview returns per-status counts and byte totals with the derived
// savings percentage.
func (r *Reporter) Overview(ctx context.Context) (Overview, error) {
	var row struct {
		PendingCount    int64
		ProcessingCount int64
		CompletedCount  int64
		FailedCount     int64
		SkippedCount    int64
		TotalOriginal   int64
		TotalCompressed int64
	}

	err := r.db.WithContext(ctx).Raw(`
		SELECT
			SUM(CASE WHEN compression_status = 'pending' THEN 1 ELSE 0 END)    AS pending_count,
			SUM(CASE WHEN compression_status = 'processing' THEN 1 ELSE 0 END) AS processing_count,
			SUM(CASE WHEN compression_status = 'completed' THEN 1 ELSE 0 END)  AS completed_count,
			SUM(CASE WHEN compression_status = 'failed' THEN 1 ELSE 0 END)     AS failed_count,
			SUM(CASE WHEN compression_status = 'skipped' THEN 1 ELSE 0 END)    AS skipped_count,
			COALESCE(SUM(CASE WHEN compression_status = 'completed' THEN size_bytes ELSE 0 END), 0)            AS total_original,
			COALESCE(SUM(CASE WHEN compression_status = 'completed' THEN compressed_size_bytes ELSE 0 END), 0) AS total_compressed
		FROM documents`).Scan(&row).Error
	if err != nil {
		return Overview{}, err
	}

	return Overview{
		PendingCount:    row.PendingCount,
		ProcessingCount: row.ProcessingCount,
		CompletedCount:  row.CompletedCount,
		FailedCount:     row.FailedCount,
		SkippedCount:    row.SkippedCount,
		TotalOriginal:   row.TotalOriginal,
		TotalCompressed: row.TotalCompressed,
		SavingsPercent:  savings(row.TotalOriginal, row.TotalCompressed),
	}, nil
}

// PerTypeAnalysis joins document types with their aggregated outcomes.
func (r *Reporter) PerTypeAnalysis(ctx context.Context) ([]TypeAnalysis, error) {
	var rows []struct {
		TypeID          string
		TypeName        string
		DocumentCount   int64
		CompressedCount int64
		FailedCount     int64
		SkippedCount    int64
		TotalOriginal   int64
		TotalCompressed int64
	}

	err := r.db.WithContext(ctx).Raw(`
		SELECT
			dt.id   AS type_id,
			dt.name AS type_name,
			COUNT(d.id) AS document_count,
			SUM(CASE WHEN d.compression_status = 'completed' THEN 1 ELSE 0 END) AS compressed_count,
			SUM(CASE WHEN d.compression_status = 'failed' THEN 1 ELSE 0 END)    AS failed_count,
			SUM(CASE WHEN d.compression_status = 'skipped' THEN 1 ELSE 0 END)   AS skipped_count,
			COALESCE(SUM(CASE WHEN d.compression_status = 'completed' THEN d.size_bytes ELSE 0 END), 0)            AS total_original,
			COALESCE(SUM(CASE WHEN d.compression_status = 'completed' THEN d.compressed_size_bytes ELSE 0 END), 0) AS total_compressed
		FROM document_types dt
		LEFT JOIN documents d ON d.type_id = dt.id
		GROUP BY dt.id, dt.name
		ORDER BY dt.name`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]TypeAnalysis, 0, len(rows))
	for _, row := range rows {
		out = append(out, TypeAnalysis{
			TypeID:          row.TypeID,
			TypeName:        row.TypeName,
			DocumentCount:   row.DocumentCount,
			CompressedCount: row.CompressedCount,
			FailedCount:     row.FailedCount,
			SkippedCount:    row.SkippedCount,
			TotalOriginal:   row.TotalOriginal,
			TotalCompressed: row.TotalCompressed,
			SavingsPercent:  savings(row.TotalOriginal, row.TotalCompressed),
		})
	}
	return out, nil
}

// QueueSnapshot returns the most recent jobs, newest first.
func (r *Reporter) QueueSnapshot(ctx context.Context, limit int) ([]queue.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []queue.Job
	err := r.db.WithContext(ctx).
		Order("queued_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// FailedDocuments lists documents in terminal failed state with their error
// messages for audit. compression_status is the single authoritative filter.
func (r *Reporter) FailedDocuments(ctx context.Context) ([]document.Document, error) {
	return r.byStatus(ctx, document.StatusFailed)
}

// CompletedDocuments lists compressed documents with both paths for audit.
func (r *Reporter) CompletedDocuments(ctx context.Context) ([]document.Document, error) {
	return r.byStatus(ctx, document.StatusCompleted)
}

func (r *Reporter) byStatus(ctx context.Context, status document.Status) ([]document.Document, error) {
	var docs []document.Document
	err := r.db.WithContext(ctx).
		Where("compression_status = ?", status).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

// LastCompressedAt returns the completion time of the most recent
// successfully compressed job, zero when none exists.
func (r *Reporter) LastCompressedAt(ctx context.Context) (time.Time, error) {
	var job queue.Job
	err := r.db.WithContext(ctx).
		Where("status = ?", queue.StatusCompleted).
		Order("completed_at DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil || job.CompletedAt == nil {
		return time.Time{}, err
	}
	return *job.CompletedAt, nil
}

func savings(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return (1 - float64(compressed)/float64(original)) * 100
}
