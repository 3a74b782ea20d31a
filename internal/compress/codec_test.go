package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressibleData() []byte {
	return bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 2048)
}

func TestRoundTrip(t *testing.T) {
	methods := []Method{MethodGzip, MethodZstd, MethodLZ4, MethodNone}
	data := compressibleData()

	for _, method := range methods {
		t.Run(string(method), func(t *testing.T) {
			codec, err := New(method, 6)
			require.NoError(t, err)
			assert.Equal(t, method, codec.Method())

			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed)
		})
	}
}

func TestCompressShrinksRepetitiveInput(t *testing.T) {
	data := compressibleData()

	for _, method := range []Method{MethodGzip, MethodZstd, MethodLZ4} {
		codec, err := New(method, 6)
		require.NoError(t, err)

		compressed, err := codec.Compress(data)
		require.NoError(t, err)
		assert.Less(t, len(compressed), len(data), "method %s", method)
	}
}

func TestEmptyInput(t *testing.T) {
	for _, method := range []Method{MethodGzip, MethodZstd, MethodLZ4} {
		codec, err := New(method, 6)
		require.NoError(t, err)

		compressed, err := codec.Compress(nil)
		require.NoError(t, err)
		assert.Nil(t, compressed)

		decompressed, err := codec.Decompress(nil)
		require.NoError(t, err)
		assert.Nil(t, decompressed)
	}
}

func TestDecompressCorruptInput(t *testing.T) {
	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02}

	for _, method := range []Method{MethodGzip, MethodZstd} {
		codec, err := New(method, 6)
		require.NoError(t, err)

		_, err = codec.Decompress(garbage)
		assert.ErrorIs(t, err, ErrCorruptInput, "method %s", method)
	}
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"gzip", "zstd", "lz4", "none"} {
		method, err := ParseMethod(s)
		require.NoError(t, err)
		assert.Equal(t, Method(s), method)
	}

	_, err := ParseMethod("brotli")
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestNewUnsupportedMethod(t *testing.T) {
	_, err := New(Method("snappy"), 6)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestLevelsOutOfRangeClamped(t *testing.T) {
	data := compressibleData()

	for _, level := range []int{-5, 0, 99} {
		for _, method := range []Method{MethodGzip, MethodZstd, MethodLZ4} {
			codec, err := New(method, level)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			decompressed, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed, "method %s level %d", method, level)
		}
	}
}
