package compress

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// lz4Codec works on single LZ4 blocks. The decompressed size is prepended as
// a little-endian uint32 so Decompress can size its buffer exactly.
type lz4Codec struct {
	level lz4.CompressionLevel
}

func newLZ4Codec(level int) lz4Codec {
	var cl lz4.CompressionLevel
	switch {
	case level <= 0:
		cl = lz4.Fast
	case level >= 9:
		cl = lz4.Level9
	default:
		cl = lz4.CompressionLevel(1 << (8 + level))
	}
	return lz4Codec{level: cl}
}

func (c lz4Codec) Method() Method { return MethodLZ4 }

func (c lz4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(dst, uint32(len(data)))

	var n int
	var err error
	if c.level == lz4.Fast {
		var comp lz4.Compressor
		n, err = comp.CompressBlock(data, dst[4:])
	} else {
		comp := lz4.CompressorHC{Level: c.level}
		n, err = comp.CompressBlock(data, dst[4:])
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Incompressible input; CompressBlock signals this with n == 0.
		// Store it raw after the size header.
		dst = append(dst[:4], data...)
		return dst, nil
	}

	return dst[:4+n], nil
}

func (c lz4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: short lz4 payload", ErrCorruptInput)
	}

	const maxDecompressedSize = 1 << 30

	size := binary.LittleEndian.Uint32(data)
	if size > maxDecompressedSize {
		return nil, fmt.Errorf("%w: implausible decompressed size %d", ErrCorruptInput, size)
	}
	if size == uint32(len(data)-4) {
		// Possibly stored raw; a block decompress that fails confirms it.
		out := make([]byte, size)
		if n, err := lz4.UncompressBlock(data[4:], out); err == nil {
			return out[:n], nil
		}
		return append([]byte(nil), data[4:]...), nil
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptInput, err)
	}

	return out[:n], nil
}
