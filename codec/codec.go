// Package codec provides the compression-codec external collaborator:
// compress_chunk and decompress_chunk operate on one chunk at a time
// with no state spanning chunks, so a chunk can be recompressed or
// retried independently of its neighbors. This package ships a no-op
// passthrough and a stdlib compress/flate codec (see DESIGN.md for why
// no third-party compression library is used).
package codec

import (
	"bytes"
	"compress/flate"
	"io"
)

// Compression ids carried in StreamHeader.CompressionID.
const (
	IDNone  uint8 = 0
	IDFlate uint8 = 1
)

// Codec compresses and decompresses independent chunks; no state may
// span chunks.
type Codec interface {
	CompressChunk(data []byte) ([]byte, error)
	DecompressChunk(data []byte) ([]byte, error)
}

type noneCodec struct{}

func (noneCodec) CompressChunk(data []byte) ([]byte, error)   { return data, nil }
func (noneCodec) DecompressChunk(data []byte) ([]byte, error) { return data, nil }

// None is the passthrough codec (compression_id = 0).
var None Codec = noneCodec{}

type flateCodec struct{ level int }

// NewFlate builds a compress/flate-backed Codec (compression_id = 1).
func NewFlate(level int) Codec {
	if level == 0 {
		level = flate.DefaultCompression
	}
	return flateCodec{level: level}
}

func (c flateCodec) CompressChunk(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c flateCodec) DecompressChunk(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DefaultCodecs returns the built-in compression_id -> Codec bindings.
func DefaultCodecs() map[uint8]Codec {
	return map[uint8]Codec{
		IDNone:  None,
		IDFlate: NewFlate(flate.DefaultCompression),
	}
}
