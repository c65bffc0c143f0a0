package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xtls/segflow/segment"
	"github.com/xtls/segflow/wire"
)

func segResult(idx uint64, payload string, final bool) SegmentResult {
	flags := uint16(0)
	if final {
		flags = wire.SegmentFlagFinal
	}
	return SegmentResult{Encrypted: &segment.EncryptedSegment{
		Header: wire.SegmentHeader{SegmentIndex: idx, WireLen: uint32(len(payload)), FrameCount: 3, Flags: flags},
		Wire:   []byte(payload),
	}}
}

// TestWriteOrderedPassesThroughInOrder verifies segments arriving
// already in order are written as-is.
func TestWriteOrderedPassesThroughInOrder(t *testing.T) {
	in := make(chan SegmentResult, 3)
	in <- segResult(0, "aaa", false)
	in <- segResult(1, "bbb", false)
	in <- segResult(2, "", true)
	close(in)

	var out bytes.Buffer
	if err := WriteOrdered(&out, in, nil); err != nil {
		t.Fatalf("WriteOrdered: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected non-empty output")
	}
}

// TestWriteOrderedBuffersOutOfOrderArrivals verifies a segment that
// arrives before its predecessor is buffered and flushed once the gap
// closes, producing byte-identical output to the in-order case.
func TestWriteOrderedBuffersOutOfOrderArrivals(t *testing.T) {
	inOrder := make(chan SegmentResult, 3)
	inOrder <- segResult(0, "aaa", false)
	inOrder <- segResult(1, "bbb", false)
	inOrder <- segResult(2, "", true)
	close(inOrder)
	var wantBuf bytes.Buffer
	if err := WriteOrdered(&wantBuf, inOrder, nil); err != nil {
		t.Fatalf("WriteOrdered (in order): %v", err)
	}

	outOfOrder := make(chan SegmentResult, 3)
	outOfOrder <- segResult(1, "bbb", false)
	outOfOrder <- segResult(0, "aaa", false)
	outOfOrder <- segResult(2, "", true)
	close(outOfOrder)
	var gotBuf bytes.Buffer
	if err := WriteOrdered(&gotBuf, outOfOrder, nil); err != nil {
		t.Fatalf("WriteOrdered (reordered): %v", err)
	}

	if !bytes.Equal(gotBuf.Bytes(), wantBuf.Bytes()) {
		t.Fatal("reordered input should still produce in-order output")
	}
}

// TestWriteOrderedFailsWithoutFinalSegment verifies the writer reports
// an error if its input closes before a FINAL_SEGMENT was ever seen.
func TestWriteOrderedFailsWithoutFinalSegment(t *testing.T) {
	in := make(chan SegmentResult, 1)
	in <- segResult(0, "aaa", false)
	close(in)

	var out bytes.Buffer
	if err := WriteOrdered(&out, in, nil); err == nil {
		t.Fatal("expected error: input closed without a FINAL_SEGMENT")
	}
}

// TestWriteOrderedFailsOnGapAtStreamEnd verifies a FINAL_SEGMENT
// observed with an unresolved earlier gap is an error, not a silent
// drop.
func TestWriteOrderedFailsOnGapAtStreamEnd(t *testing.T) {
	in := make(chan SegmentResult, 2)
	in <- segResult(0, "aaa", false)
	in <- segResult(2, "", true) // segment 1 never arrives
	close(in)

	var out bytes.Buffer
	if err := WriteOrdered(&out, in, nil); err == nil {
		t.Fatal("expected error for a gap remaining at the final segment")
	}
}

// TestWriteOrderedPropagatesSegmentError verifies a failed segment
// result short-circuits the writer.
func TestWriteOrderedPropagatesSegmentError(t *testing.T) {
	boom := segResult(0, "", false)
	boom.Err = errors.New("segment worker failure")
	in := make(chan SegmentResult, 1)
	in <- boom
	close(in)

	var out bytes.Buffer
	if err := WriteOrdered(&out, in, nil); err == nil {
		t.Fatal("expected the writer to propagate the segment error")
	}
}
