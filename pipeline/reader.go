package pipeline

import (
	"io"

	"github.com/xtls/segflow/errs"
	"github.com/xtls/segflow/segment"
	"github.com/xtls/segflow/telemetry"
	"github.com/xtls/segflow/wire"
	"github.com/xtls/segflow/wirebuf"
)

// ReadStreamHeader reads and validates the 80-byte StreamHeader once,
// at stream open.
func ReadStreamHeader(src io.Reader) (*wire.StreamHeader, error) {
	buf := make([]byte, wire.StreamHeaderSize)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, errs.IO("read_stream_header", err)
	}
	return wire.DecodeStreamHeader(buf)
}

// WriteStreamHeader serializes h once, at stream start.
func WriteStreamHeader(dst io.Writer, h *wire.StreamHeader) error {
	if _, err := dst.Write(h.Encode()); err != nil {
		return errs.IO("write_stream_header", err)
	}
	return nil
}

// ReadOrdered is the decrypt-path I/O boundary: after the StreamHeader
// has been consumed, it reads exact SegmentHeader then exact wire_len
// bytes per segment and emits segment.DecryptInput in order into out,
// stopping after the FINAL_SEGMENT-flagged segment has been enqueued.
// Segment wire bytes are allocated from the pooled wirebuf tiers rather
// than a bare make, so DecryptSegment can return the backing array once
// every frame view into it has been consumed.
//
// A short read on a *trailing* segment is treated as absence rather
// than a hard error: a segment is durably committed only once
// SegmentHeader+wire is fully written, so a truncated tail means the
// stream is resumable from the last intact segment. ReadOrdered reports
// this by closing out without error and without ever having sent the
// truncated segment.
func ReadOrdered(src io.Reader, out chan<- segment.DecryptInput, counters *telemetry.Counters) error {
	defer close(out)

	hdrBuf := make([]byte, wire.SegmentHeaderSize)
	for {
		_, err := io.ReadFull(src, hdrBuf)
		if err == io.EOF {
			return errs.IO("read_ordered", errStreamEndedWithoutFinal)
		}
		if err == io.ErrUnexpectedEOF {
			// Truncated trailing SegmentHeader: treat as absent.
			return nil
		}
		if err != nil {
			return errs.IO("read_ordered", err)
		}

		hdr, err := wire.DecodeSegmentHeader(hdrBuf)
		if err != nil {
			return err
		}

		var wireBytes []byte
		var buf *wirebuf.WireBuffer
		if hdr.WireLen > 0 {
			buf = wirebuf.New(int(hdr.WireLen))
			wireBytes = buf.Bytes()
			_, err := io.ReadFull(src, wireBytes)
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				// Truncated trailing segment wire: treat as absent.
				buf.Release()
				return nil
			}
			if err != nil {
				buf.Release()
				return errs.IO("read_ordered", err)
			}
		}

		if counters != nil {
			counters.AddBytesIn(int64(wire.SegmentHeaderSize + len(wireBytes)))
		}

		out <- segment.DecryptInput{Header: hdr, Wire: wireBytes, Buf: buf}

		if hdr.IsFinal() {
			return nil
		}
	}
}
