package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mkrylov/docpress/internal/compress"
	"github.com/mkrylov/docpress/internal/document"
)

var ErrUnknownType = errors.New("unknown document type")

const cacheTTL = 10 * time.Minute

// Policy is the per document-type rule set controlling whether and how
// compression is performed.
type Policy struct {
	Level   int             `json:"level"`
	Method  compress.Method `json:"method"`
	MinSize int64           `json:"minSize"`
}

// Registry resolves document types to policies. Type rows are read-mostly,
// so lookups go through an optional redis cache with explicit invalidation
// on admin change. A nil redis client disables caching.
type Registry struct {
	types document.TypeRepository
	rdb   *redis.Client
}

func NewRegistry(types document.TypeRepository, rdb *redis.Client) *Registry {
	return &Registry{types: types, rdb: rdb}
}

func cacheKey(typeID uuid.UUID) string {
	return "doctype:policy:" + typeID.String()
}

// Lookup returns the policy for a document type, failing with ErrUnknownType
// when the type is not registered.
func (r *Registry) Lookup(ctx context.Context, typeID uuid.UUID) (Policy, error) {
	if r.rdb != nil {
		raw, err := r.rdb.Get(ctx, cacheKey(typeID)).Bytes()
		if err == nil {
			var p Policy
			if err := json.Unmarshal(raw, &p); err == nil {
				return p, nil
			}
			// Unreadable cache entry; fall through to the store.
		}
	}

	docType, err := r.types.GetByID(ctx, typeID)
	if errors.Is(err, document.ErrNotFound) {
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	if err != nil {
		return Policy{}, err
	}

	p := Policy{
		Level:   docType.CompressionLevel,
		Method:  docType.CompressionMethod,
		MinSize: docType.MinSizeForCompression,
	}

	if r.rdb != nil {
		if raw, err := json.Marshal(p); err == nil {
			r.rdb.Set(ctx, cacheKey(typeID), raw, cacheTTL)
		}
	}

	return p, nil
}

// Save writes a document type and invalidates its cached policy.
func (r *Registry) Save(ctx context.Context, t document.Type) error {
	if _, err := compress.ParseMethod(string(t.CompressionMethod)); err != nil {
		return err
	}
	if err := r.types.Save(ctx, t); err != nil {
		return err
	}
	if r.rdb != nil {
		r.rdb.Del(ctx, cacheKey(t.ID))
	}
	return nil
}
