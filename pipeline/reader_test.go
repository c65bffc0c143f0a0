package pipeline

import (
	"bytes"
	"testing"

	"github.com/xtls/segflow/segment"
	"github.com/xtls/segflow/wire"
)

// TestStreamHeaderWriteReadRoundTrip verifies WriteStreamHeader and
// ReadStreamHeader round-trip a StreamHeader.
func TestStreamHeaderWriteReadRoundTrip(t *testing.T) {
	h := &wire.StreamHeader{
		Magic: wire.Magic, Version: wire.ProtocolVersion,
		ChunkSize: wire.AllowedChunkSizes[0],
	}
	h.Salt[0] = 1

	var buf bytes.Buffer
	if err := WriteStreamHeader(&buf, h); err != nil {
		t.Fatalf("WriteStreamHeader: %v", err)
	}
	got, err := ReadStreamHeader(&buf)
	if err != nil {
		t.Fatalf("ReadStreamHeader: %v", err)
	}
	if got.Magic != h.Magic || got.ChunkSize != h.ChunkSize {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func writeRawSegment(buf *bytes.Buffer, idx uint64, payload []byte, final bool) {
	flags := uint16(0)
	if final {
		flags = wire.SegmentFlagFinal
	}
	hdr := wire.SegmentHeader{SegmentIndex: idx, WireLen: uint32(len(payload)), FrameCount: 3, Flags: flags}
	buf.Write(hdr.Encode())
	buf.Write(payload)
}

// TestReadOrderedStopsAtFinalSegment verifies ReadOrdered emits every
// segment up to and including the FINAL_SEGMENT-flagged one, then
// closes its output channel.
func TestReadOrderedStopsAtFinalSegment(t *testing.T) {
	var buf bytes.Buffer
	writeRawSegment(&buf, 0, []byte("aaaa"), false)
	writeRawSegment(&buf, 1, []byte("bb"), false)
	writeRawSegment(&buf, 2, nil, true)

	out := make(chan segment.DecryptInput, 8)
	if err := ReadOrdered(&buf, out, nil); err != nil {
		t.Fatalf("ReadOrdered: %v", err)
	}

	var got []segment.DecryptInput
	for in := range out {
		got = append(got, in)
	}
	if len(got) != 3 {
		t.Fatalf("got %d segments, want 3", len(got))
	}
	if !got[2].Header.IsFinal() {
		t.Fatal("last segment should be final")
	}
}

// TestReadOrderedTreatsTruncatedTailAsAbsent verifies a truncated
// trailing segment ends the stream cleanly rather than erroring,
// supporting resumability from the last intact segment.
func TestReadOrderedTreatsTruncatedTailAsAbsent(t *testing.T) {
	var full bytes.Buffer
	writeRawSegment(&full, 0, []byte("aaaa"), false)
	writeRawSegment(&full, 1, []byte("bbbbbbbb"), false)

	truncated := full.Bytes()[:len(full.Bytes())-3] // cut into segment 1's payload

	out := make(chan segment.DecryptInput, 8)
	if err := ReadOrdered(bytes.NewReader(truncated), out, nil); err != nil {
		t.Fatalf("ReadOrdered should tolerate a truncated tail, got: %v", err)
	}

	var got []segment.DecryptInput
	for in := range out {
		got = append(got, in)
	}
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1 (only segment 0 was intact)", len(got))
	}
}

// TestReadOrderedErrorsWithoutFinalSegment verifies a clean EOF before
// any FINAL_SEGMENT was read is reported as an error (not silently
// treated as a normal end of stream).
func TestReadOrderedErrorsWithoutFinalSegment(t *testing.T) {
	var buf bytes.Buffer
	writeRawSegment(&buf, 0, []byte("aaaa"), false)

	out := make(chan segment.DecryptInput, 8)
	err := ReadOrdered(&buf, out, nil)
	for range out {
	}
	if err == nil {
		t.Fatal("expected error: stream ended before a FINAL_SEGMENT was read")
	}
}
