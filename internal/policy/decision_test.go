package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrylov/docpress/internal/compress"
	"github.com/mkrylov/docpress/internal/document"
)

func TestDecideSkipsBelowMinimumSize(t *testing.T) {
	doc := document.Document{SizeBytes: 500_000, MimeType: "text/plain"}
	p := Policy{Level: 6, Method: compress.MethodGzip, MinSize: 1_000_000}

	d := Decide(doc, p)
	assert.False(t, d.Compress)
	assert.Contains(t, d.Reason, "below minimum size")
}

func TestDecideSkipsMethodNone(t *testing.T) {
	doc := document.Document{SizeBytes: 5_000_000, MimeType: "text/plain"}
	p := Policy{Method: compress.MethodNone, MinSize: 0}

	d := Decide(doc, p)
	assert.False(t, d.Compress)
	assert.Contains(t, d.Reason, "none")
}

func TestDecideSkipsIncompressibleMime(t *testing.T) {
	p := Policy{Level: 6, Method: compress.MethodGzip, MinSize: 0}

	for _, mt := range []string{"image/jpeg", "video/mp4", "application/zip", "IMAGE/PNG", "image/jpeg; quality=80"} {
		doc := document.Document{SizeBytes: 5_000_000, MimeType: mt}
		d := Decide(doc, p)
		assert.False(t, d.Compress, "mime %q", mt)
	}
}

func TestDecideCompressesEligibleDocument(t *testing.T) {
	doc := document.Document{SizeBytes: 2_000_000, MimeType: "text/plain"}
	p := Policy{Level: 6, Method: compress.MethodGzip, MinSize: 1_000_000}

	d := Decide(doc, p)
	assert.True(t, d.Compress)
	assert.Equal(t, compress.MethodGzip, d.Method)
	assert.Equal(t, 6, d.Level)
}

func TestCompressible(t *testing.T) {
	assert.True(t, Compressible("text/plain"))
	assert.True(t, Compressible("application/pdf"))
	assert.False(t, Compressible("image/jpeg"))
	assert.False(t, Compressible(" application/gzip "))
}
