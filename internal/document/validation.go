package document

import (
	"errors"
	"mime"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidFilename = errors.New("invalid filename")
	ErrInvalidMimeType = errors.New("invalid mime type")
	ErrInvalidSize     = errors.New("size must be non-negative")
	ErrEmptyPath       = errors.New("original path required")
	ErrPathTraversal   = errors.New("path traversal detected")
)

// ValidateFilename checks an original filename for safety. Malformed names
// are rejected at registration and never reach the queue.
func ValidateFilename(filename string) error {
	if filename == "" {
		return ErrInvalidFilename
	}
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return ErrPathTraversal
	}
	if len(filename) > 255 {
		return ErrInvalidFilename
	}
	if !utf8.ValidString(filename) {
		return ErrInvalidFilename
	}
	return nil
}

// ValidateContentType checks that the declared MIME type parses.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return ErrInvalidMimeType
	}
	if _, _, err := mime.ParseMediaType(contentType); err != nil {
		return ErrInvalidMimeType
	}
	return nil
}
