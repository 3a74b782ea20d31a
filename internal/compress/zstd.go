package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

type zstdCodec struct {
	level zstd.EncoderLevel
}

// newZstdCodec maps the document-type level (0-9 scale) onto the encoder
// levels the zstd package actually distinguishes.
func newZstdCodec(level int) zstdCodec {
	var el zstd.EncoderLevel
	switch {
	case level <= 1:
		el = zstd.SpeedFastest
	case level <= 5:
		el = zstd.SpeedDefault
	case level <= 7:
		el = zstd.SpeedBetterCompression
	default:
		el = zstd.SpeedBestCompression
	}
	return zstdCodec{level: el}
}

func (c zstdCodec) Method() Method { return MethodZstd }

func (c zstdCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return nil, err
	}
	out := enc.EncodeAll(data, nil)
	if err := enc.Close(); err != nil {
		return nil, err
	}

	return out, nil
}

func (c zstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptInput, err)
	}

	return out, nil
}
