package policy

import (
	"fmt"
	"strings"

	"github.com/mkrylov/docpress/internal/compress"
	"github.com/mkrylov/docpress/internal/document"
)

// Formats that carry their own compression; running a generic codec over
// them wastes work for no gain.
var incompressibleMimeTypes = map[string]bool{
	"image/jpeg":                   true,
	"image/png":                    true,
	"image/gif":                    true,
	"image/webp":                   true,
	"video/mp4":                    true,
	"video/webm":                   true,
	"video/quicktime":              true,
	"audio/mpeg":                   true,
	"audio/aac":                    true,
	"application/zip":              true,
	"application/gzip":             true,
	"application/x-7z-compressed":  true,
	"application/x-rar-compressed": true,
	"application/zstd":             true,
}

// Decision is the outcome of applying a policy to a document: either
// compress with a method and level, or skip with a reason.
type Decision struct {
	Compress bool
	Method   compress.Method
	Level    int
	Reason   string
}

// Decide applies policy to doc. A skip is a successful outcome, never a
// failure.
func Decide(doc document.Document, p Policy) Decision {
	if p.Method == compress.MethodNone {
		return skip("compression method is none")
	}
	if doc.SizeBytes < p.MinSize {
		return skip(fmt.Sprintf("below minimum size: %d < %d bytes", doc.SizeBytes, p.MinSize))
	}
	if !Compressible(doc.MimeType) {
		return skip(fmt.Sprintf("mime type %s is not compressible", doc.MimeType))
	}
	return Decision{Compress: true, Method: p.Method, Level: p.Level}
}

func skip(reason string) Decision {
	return Decision{Compress: false, Reason: reason}
}

// Compressible reports whether a generic codec is expected to shrink the
// given MIME type.
func Compressible(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return !incompressibleMimeTypes[mt]
}
