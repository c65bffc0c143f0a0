package codec

import (
	"bytes"
	"testing"
)

// TestNoneCodecRoundTrip verifies the passthrough codec returns input
// unchanged.
func TestNoneCodecRoundTrip(t *testing.T) {
	data := []byte("chunk of plaintext")
	compressed, err := None.CompressChunk(data)
	if err != nil {
		t.Fatalf("CompressChunk: %v", err)
	}
	decompressed, err := None.DecompressChunk(compressed)
	if err != nil {
		t.Fatalf("DecompressChunk: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("passthrough codec should return input unchanged")
	}
}

// TestFlateCodecRoundTrip verifies the flate codec compresses and
// decompresses back to the original chunk.
func TestFlateCodecRoundTrip(t *testing.T) {
	c := NewFlate(0)
	data := bytes.Repeat([]byte("compressible repeated text "), 200)

	compressed, err := c.CompressChunk(data)
	if err != nil {
		t.Fatalf("CompressChunk: %v", err)
	}
	if len(compressed) >= len(data) {
		t.Fatalf("expected compression to shrink repeated text: got %d >= %d", len(compressed), len(data))
	}

	decompressed, err := c.DecompressChunk(compressed)
	if err != nil {
		t.Fatalf("DecompressChunk: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed chunk should match original")
	}
}

// TestDefaultCodecsCoverBothIDs verifies the registry map has entries
// for both shipped compression ids.
func TestDefaultCodecsCoverBothIDs(t *testing.T) {
	codecs := DefaultCodecs()
	if _, ok := codecs[IDNone]; !ok {
		t.Fatal("missing codec for IDNone")
	}
	if _, ok := codecs[IDFlate]; !ok {
		t.Fatal("missing codec for IDFlate")
	}
}
