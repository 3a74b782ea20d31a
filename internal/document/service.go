package document

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkrylov/docpress/internal/queue"
)

// Service is the contract the ingestion collaborator calls when new content
// arrives: register the document and enqueue its first compression job in
// one transaction, then poll for status.
type Service interface {
	RegisterDocument(ctx context.Context, input RegisterInput) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
}

// RegisterInput carries the metadata for a newly stored file. Priority is
// optional; when empty the document type's default applies.
type RegisterInput struct {
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	OriginalPath     string
	TypeID           uuid.UUID
	Priority         queue.Priority
}

type service struct {
	db    *gorm.DB
	repo  Repository
	types TypeRepository
	jobs  queue.Queue
}

func NewService(db *gorm.DB, repo Repository, types TypeRepository, jobs queue.Queue) Service {
	return &service{
		db:    db,
		repo:  repo,
		types: types,
		jobs:  jobs,
	}
}

func (s *service) RegisterDocument(ctx context.Context, input RegisterInput) (Document, error) {
	if err := ValidateFilename(input.OriginalFilename); err != nil {
		return Document{}, err
	}
	if err := ValidateContentType(input.MimeType); err != nil {
		return Document{}, err
	}
	if input.SizeBytes < 0 {
		return Document{}, ErrInvalidSize
	}
	if input.OriginalPath == "" {
		return Document{}, ErrEmptyPath
	}

	// Fails fast with ErrNotFound for an unregistered type; nothing reaches
	// the queue.
	docType, err := s.types.GetByID(ctx, input.TypeID)
	if err != nil {
		return Document{}, err
	}

	priority := input.Priority
	if priority == "" {
		priority = queue.ParsePriority(docType.DefaultPriority)
	}

	doc := Document{
		ID:                uuid.New(),
		OriginalFilename:  input.OriginalFilename,
		MimeType:          input.MimeType,
		SizeBytes:         input.SizeBytes,
		OriginalPath:      input.OriginalPath,
		CompressionStatus: StatusPending,
		TypeID:            docType.ID,
		CreatedAt:         time.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, doc); err != nil {
			return err
		}
		_, err := s.jobs.WithTx(tx).Enqueue(ctx, doc.ID, priority)
		return err
	})
	if err != nil {
		return Document{}, err
	}

	return doc, nil
}

func (s *service) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	return s.repo.GetByID(ctx, id)
}
