package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkrylov/docpress/internal/compress"
)

// Storage moves artifact bytes in and out of the blob store. Write must not
// expose a partially written object: implementations publish the key only
// after the payload is fully flushed.
type Storage interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
}

// CompressedKey derives the deterministic artifact key for a document and
// method, so retries overwrite rather than accumulate.
func CompressedKey(documentID uuid.UUID, method compress.Method) string {
	return fmt.Sprintf("compressed/%s%s", documentID, method.Extension())
}
