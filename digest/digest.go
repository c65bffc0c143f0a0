// Package digest implements the segment digest engine: an incremental
// hash over the canonical byte sequence
//
//	segment_index      (u64, little-endian)
//	frame_count        (u32, little-endian)
//	repeat frame_count times, ordered by frame_index ascending:
//	    frame_index    (u32, little-endian)
//	    ciphertext_len (u32, little-endian)
//	    ciphertext     (ciphertext_len bytes)
//
// restricted to data frames; Digest and Terminator frames never
// contribute. UpdateFrame requires monotonically increasing
// frame_index — violating that is a programming error and panics.
package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"hash"

	"github.com/xtls/segflow/errs"
	"lukechampine.com/blake3"
)

// Algorithm ids carried in SegmentHeader.DigestAlg.
const (
	AlgSHA256 uint16 = 1
	AlgSHA512 uint16 = 2
	AlgBLAKE3 uint16 = 3
)

// Engine is the incremental per-segment digest.
type Engine struct {
	h            hash.Hash
	nextIndex    uint32
	frameCount   uint32
	started      bool
}

func newHash(alg uint16) (hash.Hash, error) {
	switch alg {
	case AlgSHA256:
		return sha256.New(), nil
	case AlgSHA512:
		return sha512.New(), nil
	case AlgBLAKE3:
		return blake3.New(32, nil), nil
	default:
		return nil, errs.Protocol("digest_new_hash", errUnknownAlg)
	}
}

// New builds an Engine for the given algorithm and calls
// StartSegment(segmentIndex, frameCount) on it.
func New(alg uint16, segmentIndex uint64, frameCount uint32) (*Engine, error) {
	h, err := newHash(alg)
	if err != nil {
		return nil, err
	}
	e := &Engine{h: h}
	e.StartSegment(segmentIndex, frameCount)
	return e, nil
}

// StartSegment writes the canonical preamble: segment_index, frame_count.
func (e *Engine) StartSegment(segmentIndex uint64, frameCount uint32) {
	var hdr [12]byte
	binary.LittleEndian.PutUint64(hdr[0:8], segmentIndex)
	binary.LittleEndian.PutUint32(hdr[8:12], frameCount)
	e.h.Write(hdr[:])
	e.frameCount = frameCount
	e.nextIndex = 0
	e.started = true
}

// UpdateFrame feeds one data frame's (frame_index, ciphertext_len,
// ciphertext) into the running hash. frame_index must equal the index
// of the previous call plus one (or zero on the first call); violating
// that is a programming error.
func (e *Engine) UpdateFrame(frameIndex uint32, ciphertext []byte) {
	if !e.started {
		panic("digest: UpdateFrame called before StartSegment")
	}
	if frameIndex != e.nextIndex {
		panic("digest: UpdateFrame called out of order")
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], frameIndex)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(ciphertext)))
	e.h.Write(hdr[:])
	e.h.Write(ciphertext)
	e.nextIndex++
}

// Finalize returns the digest bytes. The Engine must not be reused
// after Finalize.
func (e *Engine) Finalize() []byte {
	return e.h.Sum(nil)
}

// Verifier recomputes a segment's digest on the decrypt path and
// compares it against the Digest frame's plaintext.
type Verifier struct {
	engine   *Engine
	expected []byte
}

// NewVerifier builds a Verifier for the given algorithm, segment and
// expected digest bytes (the Digest frame's plaintext).
func NewVerifier(alg uint16, segmentIndex uint64, frameCount uint32, expected []byte) (*Verifier, error) {
	e, err := New(alg, segmentIndex, frameCount)
	if err != nil {
		return nil, err
	}
	return &Verifier{engine: e, expected: expected}, nil
}

// UpdateFrame feeds one data frame the same way Engine.UpdateFrame does.
func (v *Verifier) UpdateFrame(frameIndex uint32, ciphertext []byte) {
	v.engine.UpdateFrame(frameIndex, ciphertext)
}

// Finalize compares the recomputed digest against the expected bytes.
func (v *Verifier) Finalize() error {
	got := v.engine.Finalize()
	if len(got) != len(v.expected) || subtle.ConstantTimeCompare(got, v.expected) != 1 {
		return errs.DigestMismatch("segment_digest_verify", errMismatch)
	}
	return nil
}
