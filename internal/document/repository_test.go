package document

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mkrylov/docpress/internal/compress"
	"github.com/mkrylov/docpress/internal/queue"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "documents.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, queue.Migrate(db))
	return db
}

func seedType(t *testing.T, db *gorm.DB) Type {
	t.Helper()
	docType := Type{
		ID:                    uuid.New(),
		Name:                  "field-report",
		CompressionLevel:      6,
		CompressionMethod:     compress.MethodGzip,
		MinSizeForCompression: 1_000_000,
		DefaultPriority:       "normal",
	}
	require.NoError(t, NewTypeRepository(db).Save(context.Background(), docType))
	return docType
}

func seedDocument(t *testing.T, db *gorm.DB, typeID uuid.UUID, size int64) Document {
	t.Helper()
	doc := Document{
		ID:                uuid.New(),
		OriginalFilename:  "report.txt",
		MimeType:          "text/plain",
		SizeBytes:         size,
		OriginalPath:      "originals/report.txt",
		CompressionStatus: StatusPending,
		TypeID:            typeID,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, NewRepository(db).Create(context.Background(), doc))
	return doc
}

func TestMarkCompletedSetsPathAndSizeTogether(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRepository(db)
	docType := seedType(t, db)
	doc := seedDocument(t, db, docType.ID, 2_000_000)

	require.NoError(t, repo.MarkProcessing(ctx, doc.ID))
	require.NoError(t, repo.MarkCompleted(ctx, doc.ID, "compressed/x.gz", 500_000))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.CompressionStatus)
	require.NotNil(t, got.CompressedPath)
	assert.Equal(t, "compressed/x.gz", *got.CompressedPath)
	require.NotNil(t, got.CompressedSizeBytes)
	assert.EqualValues(t, 500_000, *got.CompressedSizeBytes)
	assert.False(t, got.HasError)
}

func TestMarkFailedClearsDerivedFields(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRepository(db)
	docType := seedType(t, db)
	doc := seedDocument(t, db, docType.ID, 2_000_000)

	require.NoError(t, repo.MarkProcessing(ctx, doc.ID))
	require.NoError(t, repo.MarkCompleted(ctx, doc.ID, "compressed/x.gz", 500_000))
	require.NoError(t, repo.MarkFailed(ctx, doc.ID, "artifact lost"))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.CompressionStatus)
	assert.Nil(t, got.CompressedPath, "failed documents must not reference an artifact")
	assert.Nil(t, got.CompressedSizeBytes)
	assert.True(t, got.HasError)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "artifact lost", *got.ErrorMessage)
}

func TestMarkSkippedLeavesDerivedFieldsNull(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewRepository(db)
	docType := seedType(t, db)
	doc := seedDocument(t, db, docType.ID, 500_000)

	require.NoError(t, repo.MarkSkipped(ctx, doc.ID, "below minimum size"))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, got.CompressionStatus)
	assert.Nil(t, got.CompressedPath)
	assert.Nil(t, got.CompressedSizeBytes)
	assert.False(t, got.HasError, "a skip is not an error")
}

func TestMarkUnknownDocument(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTestDB(t))

	assert.ErrorIs(t, repo.MarkProcessing(ctx, uuid.New()), ErrNotFound)
	assert.ErrorIs(t, repo.MarkCompleted(ctx, uuid.New(), "x", 1), ErrNotFound)
	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTypeRepositorySaveAndList(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTypeRepository(db)

	docType := seedType(t, db)

	got, err := repo.GetByID(ctx, docType.ID)
	require.NoError(t, err)
	assert.Equal(t, docType.Name, got.Name)
	assert.Equal(t, compress.MethodGzip, got.CompressionMethod)

	docType.CompressionLevel = 9
	require.NoError(t, repo.Save(ctx, docType))

	got, err = repo.GetByID(ctx, docType.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.CompressionLevel)

	types, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 1)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("report_2026.pdf"))
	assert.ErrorIs(t, ValidateFilename(""), ErrInvalidFilename)
	assert.ErrorIs(t, ValidateFilename("../etc/passwd"), ErrPathTraversal)
	assert.ErrorIs(t, ValidateFilename("dir/file.txt"), ErrPathTraversal)
	assert.ErrorIs(t, ValidateFilename(string([]byte{0xff, 0xfe})), ErrInvalidFilename)
}

func TestValidateContentType(t *testing.T) {
	assert.NoError(t, ValidateContentType("text/plain"))
	assert.NoError(t, ValidateContentType("text/plain; charset=utf-8"))
	assert.ErrorIs(t, ValidateContentType(""), ErrInvalidMimeType)
	assert.ErrorIs(t, ValidateContentType("not a mime"), ErrInvalidMimeType)
}
