package compress

// noopCodec passes data through unchanged, for the "none" method.
type noopCodec struct{}

func (noopCodec) Method() Method { return MethodNone }

func (noopCodec) Compress(data []byte) ([]byte, error) { return data, nil }

func (noopCodec) Decompress(data []byte) ([]byte, error) { return data, nil }
