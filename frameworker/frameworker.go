// Package frameworker implements the stateless AEAD frame worker:
// nonce derivation, associated-data construction, and encrypt_frame /
// decrypt_frame. A worker owns no per-frame state; only the session key
// and AAD template are fixed for the stream's lifetime.
//
// The nonce is derived from a per-stream salt-derived prefix plus a
// (segment_index, frame_index) pair rather than a single monotonic
// counter, since frames across segments are sealed concurrently and
// must still never reuse a nonce. The cipher itself is resolved
// through a registry-selected aead.Suite rather than fixed at compile
// time.
package frameworker

import (
	"encoding/binary"

	"github.com/xtls/segflow/aead"
	"github.com/xtls/segflow/errs"
	"github.com/xtls/segflow/wire"
)

// AADTemplate is bound once per stream: everything the spec's AAD
// construction needs except segment_index, frame_index and frame_type,
// which vary per frame.
type AADTemplate struct {
	Magic            uint32
	Version          uint8
	AlgorithmProfile uint8
	CipherSuiteID    uint8
	PRFID            uint8
	CompressionID    uint8
	Strategy         uint8
	AADDomainID      uint8
	Flags            uint16
	ChunkSize        uint32
	KeyID            uint64
}

// FromStreamHeader builds the per-stream AAD template from the wire
// StreamHeader.
func FromStreamHeader(h *wire.StreamHeader) AADTemplate {
	return AADTemplate{
		Magic:            h.Magic,
		Version:          h.Version,
		AlgorithmProfile: h.AlgorithmProfile,
		CipherSuiteID:    h.CipherSuiteID,
		PRFID:            h.PRFID,
		CompressionID:    h.CompressionID,
		Strategy:         h.Strategy,
		AADDomainID:      h.AADDomainID,
		Flags:            h.Flags,
		ChunkSize:        h.ChunkSize,
		KeyID:            h.KeyID,
	}
}

const aadSize = 4 + 1 + 1 + 1 + 1 + 1 + 1 + 1 + 2 + 4 + 8 + 8 + 4 + 2

// buildAAD concatenates the canonical AAD: the stream template fields
// followed by segment_index, frame_index, frame_type. Ciphertext length
// is not included: the AEAD tag already authenticates the ciphertext,
// so a frame whose ciphertext was cut or extended fails to open.
func buildAAD(t AADTemplate, segmentIndex uint64, frameIndex uint32, frameType uint16) []byte {
	b := make([]byte, 0, aadSize)
	var tmp4 [4]byte
	var tmp8 [8]byte

	binary.LittleEndian.PutUint32(tmp4[:], t.Magic)
	b = append(b, tmp4[:]...)
	b = append(b, t.Version, t.AlgorithmProfile, t.CipherSuiteID, t.PRFID, t.CompressionID, t.Strategy, t.AADDomainID)
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], t.Flags)
	b = append(b, tmp2[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], t.ChunkSize)
	b = append(b, tmp4[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], t.KeyID)
	b = append(b, tmp8[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], segmentIndex)
	b = append(b, tmp8[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], frameIndex)
	b = append(b, tmp4[:]...)
	binary.LittleEndian.PutUint16(tmp2[:], frameType)
	b = append(b, tmp2[:]...)
	return b
}

// NoncePrefixSize is the salt-derived portion of every frame nonce.
const NoncePrefixSize = 4

// DeriveNoncePrefix derives the per-stream nonce prefix from the stream
// salt, once at stream open. It is NOT the session-key KDF (see package
// kdf): session-key derivation and nonce-prefix derivation are kept as
// separate concerns so compromising one doesn't leak structure about
// the other.
func DeriveNoncePrefix(salt [16]byte) [NoncePrefixSize]byte {
	var prefix [NoncePrefixSize]byte
	// FNV-1a over the salt: cheap, deterministic, and independent of the
	// session-key KDF so a salt compromise alone doesn't also leak key
	// material structure into the nonce.
	var h uint32 = 2166136261
	for _, b := range salt {
		h ^= uint32(b)
		h *= 16777619
	}
	binary.LittleEndian.PutUint32(prefix[:], h)
	return prefix
}

// nonce builds the 96-bit AEAD nonce: salt-derived prefix || segment_index
// (low 32 bits) || frame_index. (segment_index, frame_index) is unique
// by construction within a stream, so truncating segment_index to its
// low 32 bits preserves uniqueness for any stream under 2^32 segments.
// Nothing in the pipeline checks that bound: segment indices 2^32 apart
// map to the same nonce.
func nonce(prefix [NoncePrefixSize]byte, segmentIndex uint64, frameIndex uint32) []byte {
	n := make([]byte, 12)
	copy(n[0:4], prefix[:])
	binary.LittleEndian.PutUint32(n[4:8], uint32(segmentIndex))
	binary.LittleEndian.PutUint32(n[8:12], frameIndex)
	return n
}

// Worker is the stateless per-frame encrypt/decrypt unit. It is safe
// for concurrent use by the worker pool: Suite is stateless beyond the
// fixed session key, and every call is given all the varying state
// (segment/frame index, type) as arguments.
type Worker struct {
	suite  aead.Suite
	tmpl   AADTemplate
	prefix [NoncePrefixSize]byte
}

// New builds a frame Worker bound to one stream's session key, AAD
// template and nonce prefix.
func New(suite aead.Suite, tmpl AADTemplate, prefix [NoncePrefixSize]byte) *Worker {
	return &Worker{suite: suite, tmpl: tmpl, prefix: prefix}
}

// EncryptFrame seals plaintext for (segmentIndex, frameIndex, frameType)
// and returns the full wire frame: header || ciphertext||tag.
func (w *Worker) EncryptFrame(plaintext []byte, segmentIndex uint64, frameIndex uint32, frameType uint16) ([]byte, error) {
	n := nonce(w.prefix, segmentIndex, frameIndex)
	aad := buildAAD(w.tmpl, segmentIndex, frameIndex, frameType)
	sealed := w.suite.Seal(nil, n, plaintext, aad)
	hdr := wire.FrameHeader{SegmentIndex: segmentIndex, FrameIndex: frameIndex, FrameType: frameType}
	return wire.EncodeFrame(hdr, sealed), nil
}

// DecryptedFrame is the result of opening one frame: the header parsed
// from the view, and the freshly-owned plaintext. The caller retains
// the ciphertext view (frameRange.Ciphertext(wire)) separately for
// digest verification — the frame worker does not keep it.
type DecryptedFrame struct {
	Header    wire.FrameHeader
	Plaintext []byte
}

// DecryptFrame parses the header from frameView, opens the AEAD
// ciphertext against the derived nonce and AAD, and returns the
// plaintext as a freshly owned buffer.
func (w *Worker) DecryptFrame(frameView []byte) (DecryptedFrame, error) {
	h, err := wire.ParseFrameHeader(frameView)
	if err != nil {
		return DecryptedFrame{}, err
	}
	ciphertext := frameView[wire.FrameHeaderSize:]
	if len(ciphertext) != int(h.CiphertextLen) {
		return DecryptedFrame{}, errs.Framing("decrypt_frame", errCiphertextLenMismatch)
	}

	n := nonce(w.prefix, h.SegmentIndex, h.FrameIndex)
	aadBytes := buildAAD(w.tmpl, h.SegmentIndex, h.FrameIndex, h.FrameType)
	plaintext, err := w.suite.Open(nil, n, ciphertext, aadBytes)
	if err != nil {
		return DecryptedFrame{}, errs.AeadOpen("decrypt_frame", err)
	}
	return DecryptedFrame{Header: h, Plaintext: plaintext}, nil
}
