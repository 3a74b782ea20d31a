package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrylov/docpress/internal/compress"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	require.NoError(t, err)

	key := "compressed/abc.gz"
	payload := []byte("compressed bytes")

	require.NoError(t, store.Write(ctx, key, payload, "application/gzip"))

	got, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// No temp files linger after a successful write.
	entries, err := os.ReadDir(filepath.Join(root, "compressed"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, store.Remove(ctx, key))
	_, err = store.Read(ctx, key)
	assert.Error(t, err)

	// Removing a missing key is not an error.
	assert.NoError(t, store.Remove(ctx, key))
}

func TestLocalStorageOverwrite(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key := "compressed/doc.zst"
	require.NoError(t, store.Write(ctx, key, []byte("first"), ""))
	require.NoError(t, store.Write(ctx, key, []byte("second"), ""))

	got, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b"} {
		assert.Error(t, store.Write(ctx, key, []byte("x"), ""), "key %q", key)
		_, err := store.Read(ctx, key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestCompressedKeyIsDeterministic(t *testing.T) {
	id := uuid.New()
	first := CompressedKey(id, compress.MethodGzip)
	second := CompressedKey(id, compress.MethodGzip)
	assert.Equal(t, first, second)
	assert.Equal(t, "compressed/"+id.String()+".gz", first)

	assert.NotEqual(t, first, CompressedKey(id, compress.MethodZstd))
}
