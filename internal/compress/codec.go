package compress

import (
	"errors"
	"fmt"
)

// Method identifies a compression method as stored on a document type.
type Method string

const (
	MethodGzip Method = "gzip"
	MethodZstd Method = "zstd"
	MethodLZ4  Method = "lz4"
	MethodNone Method = "none"
)

var (
	ErrUnsupportedMethod = errors.New("unsupported compression method")
	ErrCorruptInput      = errors.New("corrupt input data")
)

// ParseMethod converts a stored method string into a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodGzip, MethodZstd, MethodLZ4, MethodNone:
		return Method(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
	}
}

// Extension returns the file extension appended to derived artifacts.
func (m Method) Extension() string {
	switch m {
	case MethodGzip:
		return ".gz"
	case MethodZstd:
		return ".zst"
	case MethodLZ4:
		return ".lz4"
	default:
		return ""
	}
}

// Codec compresses and decompresses document payloads. Implementations are
// side-effect free: they never touch the document store or the queue.
type Codec interface {
	// Compress returns a newly allocated compressed copy of data.
	Compress(data []byte) ([]byte, error)

	// Decompress reverses Compress. It returns ErrCorruptInput (wrapped)
	// when the payload is not valid for the codec.
	Decompress(data []byte) ([]byte, error)

	// Method reports which method this codec implements.
	Method() Method
}

// New builds a codec for the given method and level. Level semantics are
// method specific; values outside the supported range are clamped.
func New(method Method, level int) (Codec, error) {
	switch method {
	case MethodGzip:
		return newGzipCodec(level), nil
	case MethodZstd:
		return newZstdCodec(level), nil
	case MethodLZ4:
		return newLZ4Codec(level), nil
	case MethodNone:
		return noopCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
}
