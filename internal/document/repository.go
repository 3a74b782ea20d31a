package document

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("document not found")

// Migrate creates the documents and document_types tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Document{}, &Type{})
}

// Repository persists documents. Every Mark* call is a single atomic update
// committing the status together with its dependent fields, so a reader can
// never observe a compressed_path without status completed or vice versa.
type Repository interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id uuid.UUID) (Document, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, compressedPath string, compressedSize int64) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error

	// WithTx returns a copy of the repository bound to tx, so a document
	// transition can commit together with a queue transition.
	WithTx(tx *gorm.DB) Repository
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	return &gormRepository{db: tx}
}

func (r *gormRepository) Create(ctx context.Context, doc Document) error {
	return r.db.WithContext(ctx).Create(&doc).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id uuid.UUID) (Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func (r *gormRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, map[string]interface{}{
		"compression_status": StatusProcessing,
	})
}

func (r *gormRepository) MarkCompleted(ctx context.Context, id uuid.UUID, compressedPath string, compressedSize int64) error {
	return r.update(ctx, id, map[string]interface{}{
		"compression_status":    StatusCompleted,
		"compressed_path":       compressedPath,
		"compressed_size_bytes": compressedSize,
		"has_error":             false,
		"error_message":         nil,
	})
}

func (r *gormRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(ctx, id, map[string]interface{}{
		"compression_status":    StatusFailed,
		"compressed_path":       nil,
		"compressed_size_bytes": nil,
		"has_error":             true,
		"error_message":         errMsg,
	})
}

func (r *gormRepository) MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error {
	return r.update(ctx, id, map[string]interface{}{
		"compression_status":    StatusSkipped,
		"compressed_path":       nil,
		"compressed_size_bytes": nil,
		"has_error":             false,
		"error_message":         reason,
	})
}

func (r *gormRepository) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TypeRepository persists document types. The policy registry layers its
// cache on top of this.
type TypeRepository interface {
	Save(ctx context.Context, t Type) error
	GetByID(ctx context.Context, id uuid.UUID) (Type, error)
	List(ctx context.Context) ([]Type, error)
}

type gormTypeRepository struct {
	db *gorm.DB
}

func NewTypeRepository(db *gorm.DB) TypeRepository {
	return &gormTypeRepository{db: db}
}

func (r *gormTypeRepository) Save(ctx context.Context, t Type) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(&t).Error
}

func (r *gormTypeRepository) GetByID(ctx context.Context, id uuid.UUID) (Type, error) {
	var t Type
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Type{}, ErrNotFound
	}
	return t, err
}

func (r *gormTypeRepository) List(ctx context.Context) ([]Type, error) {
	var types []Type
	if err := r.db.WithContext(ctx).Order("name").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}
