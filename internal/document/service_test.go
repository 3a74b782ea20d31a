package document

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrylov/docpress/internal/queue"
)

func newTestService(t *testing.T) (Service, queue.Queue, Type) {
	t.Helper()
	db := newTestDB(t)
	docType := seedType(t, db)
	jobs := queue.New(db, queue.Options{})
	svc := NewService(db, NewRepository(db), NewTypeRepository(db), jobs)
	return svc, jobs, docType
}

func TestRegisterDocumentCreatesPendingDocumentAndJob(t *testing.T) {
	ctx := context.Background()
	svc, jobs, docType := newTestService(t)

	doc, err := svc.RegisterDocument(ctx, RegisterInput{
		OriginalFilename: "survey.txt",
		MimeType:         "text/plain",
		SizeBytes:        2_000_000,
		OriginalPath:     "originals/survey.txt",
		TypeID:           docType.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, doc.CompressionStatus)

	entry, err := jobs.EntryByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, queue.StatusQueued, entry.Status)
	assert.Equal(t, queue.PriorityNormal, entry.PriorityLabel(), "priority comes from the type default")

	got, err := svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
}

func TestRegisterDocumentPriorityOverride(t *testing.T) {
	ctx := context.Background()
	svc, jobs, docType := newTestService(t)

	doc, err := svc.RegisterDocument(ctx, RegisterInput{
		OriginalFilename: "urgent.txt",
		MimeType:         "text/plain",
		SizeBytes:        100,
		OriginalPath:     "originals/urgent.txt",
		TypeID:           docType.ID,
		Priority:         queue.PriorityHigh,
	})
	require.NoError(t, err)

	entry, err := jobs.EntryByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, queue.PriorityHigh, entry.PriorityLabel())
}

func TestRegisterDocumentRejectsInvalidMetadata(t *testing.T) {
	ctx := context.Background()
	svc, jobs, docType := newTestService(t)

	cases := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{
			name: "bad filename",
			input: RegisterInput{
				OriginalFilename: "../../etc/passwd",
				MimeType:         "text/plain",
				SizeBytes:        10,
				OriginalPath:     "x",
				TypeID:           docType.ID,
			},
			want: ErrPathTraversal,
		},
		{
			name: "bad mime",
			input: RegisterInput{
				OriginalFilename: "a.txt",
				MimeType:         "",
				SizeBytes:        10,
				OriginalPath:     "x",
				TypeID:           docType.ID,
			},
			want: ErrInvalidMimeType,
		},
		{
			name: "negative size",
			input: RegisterInput{
				OriginalFilename: "a.txt",
				MimeType:         "text/plain",
				SizeBytes:        -1,
				OriginalPath:     "x",
				TypeID:           docType.ID,
			},
			want: ErrInvalidSize,
		},
		{
			name: "empty path",
			input: RegisterInput{
				OriginalFilename: "a.txt",
				MimeType:         "text/plain",
				SizeBytes:        10,
				TypeID:           docType.ID,
			},
			want: ErrEmptyPath,
		},
		{
			name: "unknown type",
			input: RegisterInput{
				OriginalFilename: "a.txt",
				MimeType:         "text/plain",
				SizeBytes:        10,
				OriginalPath:     "x",
				TypeID:           uuid.New(),
			},
			want: ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RegisterDocument(ctx, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// Nothing reached the queue.
	snapshot, err := jobs.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}
