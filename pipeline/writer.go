package pipeline

import (
	"io"

	"github.com/xtls/segflow/errs"
	"github.com/xtls/segflow/segment"
	"github.com/xtls/segflow/telemetry"
)

// SegmentResult is one completed (or failed) segment-worker job as it
// arrives, out of order, at the ordered writer.
type SegmentResult struct {
	Encrypted *segment.EncryptedSegment
	Err       error
}

// WriteOrdered is the encrypt-path I/O boundary: it accepts
// EncryptedSegments from potentially out-of-order completion, buffers
// only the gaps (keyed by segment_index), and emits in strict index
// order starting at 0. It stops once the segment carrying
// FINAL_SEGMENT has been flushed.
func WriteOrdered(sink io.Writer, in <-chan SegmentResult, counters *telemetry.Counters) error {
	pending := make(map[uint64]*segment.EncryptedSegment)
	next := uint64(0)
	var finalIndex *uint64
	var finalSeen bool

	for res := range in {
		if res.Err != nil {
			return res.Err
		}
		seg := res.Encrypted
		pending[seg.Header.SegmentIndex] = seg
		if seg.Header.IsFinal() {
			idx := seg.Header.SegmentIndex
			finalIndex = &idx
			finalSeen = true
		}

		for {
			seg, ok := pending[next]
			if !ok {
				break
			}
			if err := writeSegment(sink, seg); err != nil {
				return err
			}
			if counters != nil {
				counters.AddSegmentsCommitted(1)
				counters.AddBytesOut(int64(len(seg.Wire)))
			}
			delete(pending, next)
			if finalSeen && next == *finalIndex {
				return nil
			}
			next++
		}
	}
	if finalSeen && len(pending) == 0 {
		return nil
	}
	if finalSeen {
		return errs.Protocol("write_ordered", errGapAtStreamEnd)
	}
	return errs.Protocol("write_ordered", errNoFinalSegment)
}

func writeSegment(sink io.Writer, seg *segment.EncryptedSegment) error {
	if seg.Buf != nil {
		defer seg.Buf.Release()
	}
	hdrBytes := seg.Header.Encode()
	if _, err := sink.Write(hdrBytes); err != nil {
		return errs.IO("write_segment_header", err)
	}
	if len(seg.Wire) > 0 {
		if _, err := sink.Write(seg.Wire); err != nil {
			return errs.IO("write_segment_wire", err)
		}
	}
	return nil
}
