// Package segment implements the segment worker: it orchestrates one
// segment by fanning frames out to the frame-worker pool, reassembling
// by frame index, feeding the segment digest, and emitting (encrypt) or
// verifying (decrypt) the Digest and Terminator frames. The segment
// worker is the sole source of intra-segment ordering and does not
// trust frame workers beyond per-frame AEAD authentication — digest
// verification runs entirely on ciphertext views the segment worker
// itself holds.
package segment

import (
	"hash/crc32"

	"github.com/xtls/segflow/digest"
	"github.com/xtls/segflow/errs"
	"github.com/xtls/segflow/frameworker"
	"github.com/xtls/segflow/wire"
	"github.com/xtls/segflow/wirebuf"
)

// EncryptInput is one segment's plaintext and position in the stream.
type EncryptInput struct {
	SegmentIndex  uint64
	Plaintext     []byte
	CompressedLen uint32
	Flags         uint16
	// FrameSize is the explicit data-frame size, or 0 to select one
	// automatically via ChooseFrameSize.
	FrameSize int
	DigestAlg uint16
}

// EncryptedSegment is the wire-ready result of encrypting one segment.
// Wire is a view into Buf's backing array; callers that write Wire out
// and then call Buf.Release() return the array to its pool tier
// instead of leaving it for the GC.
type EncryptedSegment struct {
	Header wire.SegmentHeader
	Wire   []byte
	Buf    *wirebuf.WireBuffer
}

// EncryptSegment splits plaintext into data frames, seals each through
// the frame pool, feeds every sealed frame's ciphertext into the
// segment digest in order, then appends the Digest and Terminator
// frames and computes the segment's WireCRC32.
func EncryptSegment(pool frameworker.Dispatcher, fw *frameworker.Worker, in EncryptInput) (*EncryptedSegment, error) {
	if len(in.Plaintext) == 0 && in.Flags&wire.SegmentFlagFinal != 0 {
		return &EncryptedSegment{
			Header: wire.SegmentHeader{
				SegmentIndex: in.SegmentIndex,
				FrameCount:   0,
				Flags:        in.Flags,
			},
			Wire: nil,
		}, nil
	}

	frameSize := in.FrameSize
	if frameSize <= 0 {
		frameSize = ChooseFrameSize(len(in.Plaintext))
	}
	n := ceilDiv(len(in.Plaintext), frameSize)
	if n == 0 {
		n = 1
	}

	results := make(chan frameworker.EncryptResult, n)
	for i := 0; i < n; i++ {
		start := i * frameSize
		end := start + frameSize
		if end > len(in.Plaintext) {
			end = len(in.Plaintext)
		}
		pool.Encrypt(frameworker.EncryptJob{
			Worker:       fw,
			Plaintext:    in.Plaintext[start:end],
			SegmentIndex: in.SegmentIndex,
			FrameIndex:   uint32(i),
			FrameType:    wire.FrameTypeData,
			Result:       results,
		})
	}

	dataWires := make([][]byte, n)
	for i := 0; i < n; i++ {
		res := <-results
		if res.Err != nil {
			return nil, errs.AeadSeal("encrypt_segment", res.Err)
		}
		dataWires[res.FrameIndex] = res.Wire
	}

	digestEngine, err := digest.New(in.DigestAlg, in.SegmentIndex, uint32(n))
	if err != nil {
		return nil, err
	}

	totalLen := 0
	for _, w := range dataWires {
		totalLen += len(w)
	}

	for i, w := range dataWires {
		ciphertext := w[wire.FrameHeaderSize:]
		digestEngine.UpdateFrame(uint32(i), ciphertext)
	}
	digestBytes := digestEngine.Finalize()

	digestWire, err := fw.EncryptFrame(digestBytes, in.SegmentIndex, uint32(n), wire.FrameTypeDigest)
	if err != nil {
		return nil, errs.AeadSeal("encrypt_segment_digest", err)
	}
	terminatorWire, err := fw.EncryptFrame(nil, in.SegmentIndex, uint32(n+1), wire.FrameTypeTerminator)
	if err != nil {
		return nil, errs.AeadSeal("encrypt_segment_terminator", err)
	}

	totalLen += len(digestWire) + len(terminatorWire)
	buf := wirebuf.New(totalLen)
	segWire := buf.Slice(0, 0)
	for _, w := range dataWires {
		segWire = append(segWire, w...)
	}
	segWire = append(segWire, digestWire...)
	segWire = append(segWire, terminatorWire...)

	header := wire.SegmentHeader{
		SegmentIndex:  in.SegmentIndex,
		CompressedLen: in.CompressedLen,
		WireLen:       uint32(len(segWire)),
		WireCRC32:     crc32.ChecksumIEEE(segWire),
		FrameCount:    uint32(n + 2),
		DigestAlg:     in.DigestAlg,
		Flags:         in.Flags,
	}

	return &EncryptedSegment{Header: header, Wire: segWire, Buf: buf}, nil
}

// DecryptInput is one segment's header and wire bytes as read off the
// wire, prior to any frame-level processing. Buf is optional: when set,
// Wire is a view into Buf's backing array and DecryptSegment acquires
// and releases it around the frame views it hands to the pool,
// returning the array to its pool tier once every frame has been
// opened.
type DecryptInput struct {
	Header *wire.SegmentHeader
	Wire   []byte
	Buf    *wirebuf.WireBuffer
}

// DecryptedSegment is the verified plaintext of one segment's data
// frames, in frame_index order.
type DecryptedSegment struct {
	Header *wire.SegmentHeader
	Frames [][]byte
}

// DecryptSegment validates the segment's WireCRC32, splits it back into
// frame views, opens every frame through the frame pool, classifies the
// results by frame type, verifies the segment digest against the data
// frames' ciphertext, and checks the Terminator frame, returning the
// verified plaintext in frame order.
func DecryptSegment(pool frameworker.Dispatcher, fw *frameworker.Worker, in DecryptInput) (*DecryptedSegment, error) {
	if in.Header.IsFinal() && len(in.Wire) == 0 {
		return &DecryptedSegment{Header: in.Header}, nil
	}

	if uint32(len(in.Wire)) != in.Header.WireLen {
		return nil, errs.Protocol("decrypt_segment", errWireLenMismatch)
	}
	if in.Header.WireCRC32 != 0 {
		if crc32.ChecksumIEEE(in.Wire) != in.Header.WireCRC32 {
			return nil, errs.Protocol("decrypt_segment", errCorruptSegment)
		}
	}

	ranges, err := wire.SplitFrames(in.Wire)
	if err != nil {
		return nil, err
	}
	if len(ranges) < 3 {
		return nil, errs.Protocol("decrypt_segment", errTooFewFrames)
	}
	n := len(ranges) - 2

	results := make(chan frameworker.DecryptResult, len(ranges))
	for _, r := range ranges {
		if in.Buf != nil {
			in.Buf.Acquire()
		}
		pool.Decrypt(frameworker.DecryptJob{
			Worker:    fw,
			FrameView: in.Wire[r.Start:r.End],
			Result:    results,
		})
	}
	if in.Buf != nil {
		// Release the reference ReadOrdered's wirebuf.New acquired on
		// our behalf; the per-job Acquire/Release pairs below only
		// cover the extra references handed to the frame pool.
		defer in.Buf.Release()
	}

	// Every dispatched job holds one Acquire()'d reference on in.Buf;
	// drain whatever is still outstanding (including on an early
	// return below) so none of them are leaked.
	remaining := len(ranges)
	defer func() {
		for remaining > 0 {
			<-results
			if in.Buf != nil {
				in.Buf.Release()
			}
			remaining--
		}
	}()

	dataFrames := make([]*frameworker.DecryptedFrame, n)
	var digestFrame, terminatorFrame *frameworker.DecryptedFrame
	for remaining > 0 {
		res := <-results
		remaining--
		if in.Buf != nil {
			in.Buf.Release()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		frame := res.Frame
		switch frame.Header.FrameType {
		case wire.FrameTypeData:
			if frame.Header.FrameIndex >= uint32(n) {
				return nil, errs.Protocol("decrypt_segment", errFrameIndexRange)
			}
			if dataFrames[frame.Header.FrameIndex] != nil {
				return nil, errs.Protocol("decrypt_segment", errDuplicateDataFrame)
			}
			f := frame
			dataFrames[frame.Header.FrameIndex] = &f
		case wire.FrameTypeDigest:
			if digestFrame != nil {
				return nil, errs.Protocol("decrypt_segment", errDuplicateDigest)
			}
			f := frame
			digestFrame = &f
		case wire.FrameTypeTerminator:
			if terminatorFrame != nil {
				return nil, errs.Protocol("decrypt_segment", errDuplicateTerminator)
			}
			f := frame
			terminatorFrame = &f
		}
	}

	if digestFrame == nil {
		return nil, errs.Protocol("decrypt_segment", errMissingDigest)
	}
	if terminatorFrame == nil {
		return nil, errs.Protocol("decrypt_segment", errMissingTerminator)
	}
	for i, f := range dataFrames {
		if f == nil {
			return nil, errs.Protocol("decrypt_segment", errMissingDataFrame)
		}
		if f.Header.FrameIndex != uint32(i) {
			return nil, errs.Protocol("decrypt_segment", errFrameIndexOrder)
		}
	}

	verifier, err := digest.NewVerifier(in.Header.DigestAlg, in.Header.SegmentIndex, uint32(n), digestFrame.Plaintext)
	if err != nil {
		return nil, err
	}
	for i, r := range ranges[:n] {
		verifier.UpdateFrame(uint32(i), r.Ciphertext(in.Wire))
	}
	if err := verifier.Finalize(); err != nil {
		return nil, err
	}

	if terminatorFrame.Header.FrameIndex != uint32(n+1) || len(terminatorFrame.Plaintext) != 0 {
		return nil, errs.Protocol("decrypt_segment", errBadTerminator)
	}

	frames := make([][]byte, n)
	for i, f := range dataFrames {
		frames[i] = f.Plaintext
	}
	return &DecryptedSegment{Header: in.Header, Frames: frames}, nil
}
