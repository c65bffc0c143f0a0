// Package wire implements the bit-exact on-wire layout: the
// StreamHeader, SegmentHeader and FrameHeader records, and the
// frame-splitting walk used to hand ciphertext ranges to the segment
// worker without copying any ciphertext. The codec never touches cryptographic state.
//
// All multi-byte integers are little-endian, fixed-size, hand-packed
// records rather than a self-describing encoding — the header shape is
// part of the wire contract and must stay bit-exact across versions.
package wire

import (
	"encoding/binary"

	"github.com/xtls/segflow/errs"
)

// Magic identifies a segmented AEAD stream.
const Magic uint32 = 0x53454746 // "SEGF"

// ProtocolVersion is the only version this module understands.
const ProtocolVersion uint8 = 1

// Stream-header flag bits.
const (
	FlagHasTotalLen   uint16 = 0x0001
	FlagHasCRC32      uint16 = 0x0002
	FlagHasTerminator uint16 = 0x0004
	FlagHasFinalDigest uint16 = 0x0008
	FlagDictUsed      uint16 = 0x0010
	FlagAADStrict     uint16 = 0x0020
)

// Segment-header flag bits.
const (
	SegmentFlagFinal uint16 = 0x0001
)

// Frame types.
const (
	FrameTypeData       uint16 = 1
	FrameTypeDigest     uint16 = 2
	FrameTypeTerminator uint16 = 3
)

// StreamHeaderSize is the fixed wire size of a StreamHeader.
const StreamHeaderSize = 80

// SegmentHeaderSize is the fixed wire size of a SegmentHeader.
const SegmentHeaderSize = 30

// FrameHeaderSize is the fixed wire size of a FrameHeader.
const FrameHeaderSize = 20

// AllowedChunkSizes is the fixed allowed set of target chunk sizes.
var AllowedChunkSizes = []uint32{64 * 1024, 256 * 1024, 1024 * 1024, 4 * 1024 * 1024}

// StreamHeader self-describes the entire stream. Written once at
// stream start, read once at stream open, immutable thereafter, and
// bound into every frame's AAD.
type StreamHeader struct {
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
	PlaintextSize    uint64 // valid iff FlagHasTotalLen set
	CRC32            uint32 // valid iff FlagHasCRC32 set
	DictionaryID     uint16
	Salt             [16]byte
	KeyID            uint64
	ParallelismHint  uint16
	EncoderTimestamp uint64
}

// Encode writes h in the fixed 80-byte layout.
func (h *StreamHeader) Encode() []byte {
	buf := make([]byte, StreamHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.AlgorithmProfile
	buf[6] = h.CipherSuiteID
	buf[7] = h.PRFID
	buf[8] = h.CompressionID
	buf[9] = h.Strategy
	buf[10] = h.AADDomainID
	binary.LittleEndian.PutUint16(buf[11:13], h.Flags)
	binary.LittleEndian.PutUint32(buf[13:17], h.ChunkSize)
	binary.LittleEndian.PutUint64(buf[17:25], h.PlaintextSize)
	binary.LittleEndian.PutUint32(buf[25:29], h.CRC32)
	binary.LittleEndian.PutUint16(buf[29:31], h.DictionaryID)
	copy(buf[31:47], h.Salt[:])
	binary.LittleEndian.PutUint64(buf[47:55], h.KeyID)
	binary.LittleEndian.PutUint16(buf[55:57], h.ParallelismHint)
	binary.LittleEndian.PutUint64(buf[57:65], h.EncoderTimestamp)
	// buf[65:80] reserved, left zero.
	return buf
}

// DecodeStreamHeader parses and validates a StreamHeader from buf.
func DecodeStreamHeader(buf []byte) (*StreamHeader, error) {
	if len(buf) < StreamHeaderSize {
		return nil, errs.Framing("decode_stream_header", errTruncated)
	}
	h := &StreamHeader{
		Magic:            binary.LittleEndian.Uint32(buf[0:4]),
		Version:          buf[4],
		AlgorithmProfile: buf[5],
		CipherSuiteID:    buf[6],
		PRFID:            buf[7],
		CompressionID:    buf[8],
		Strategy:         buf[9],
		AADDomainID:      buf[10],
		Flags:            binary.LittleEndian.Uint16(buf[11:13]),
		ChunkSize:        binary.LittleEndian.Uint32(buf[13:17]),
		PlaintextSize:    binary.LittleEndian.Uint64(buf[17:25]),
		CRC32:            binary.LittleEndian.Uint32(buf[25:29]),
		DictionaryID:     binary.LittleEndian.Uint16(buf[29:31]),
		KeyID:            binary.LittleEndian.Uint64(buf[47:55]),
		ParallelismHint:  binary.LittleEndian.Uint16(buf[55:57]),
		EncoderTimestamp: binary.LittleEndian.Uint64(buf[57:65]),
	}
	copy(h.Salt[:], buf[31:47])

	if h.Magic != Magic {
		return nil, errs.Framing("decode_stream_header", errBadMagic)
	}
	if h.Version != ProtocolVersion {
		return nil, errs.Framing("decode_stream_header", errBadVersion)
	}
	if !chunkSizeAllowed(h.ChunkSize) {
		return nil, errs.Framing("decode_stream_header", errBadChunkSize)
	}
	if isZeroSalt(h.Salt) {
		return nil, errs.Framing("decode_stream_header", errZeroSalt)
	}
	return h, nil
}

func chunkSizeAllowed(size uint32) bool {
	for _, s := range AllowedChunkSizes {
		if s == size {
			return true
		}
	}
	return false
}

func isZeroSalt(salt [16]byte) bool {
	for _, b := range salt {
		if b != 0 {
			return false
		}
	}
	return true
}

// SegmentHeader prefixes each segment's wire bytes.
type SegmentHeader struct {
	SegmentIndex   uint64
	CompressedLen  uint32
	WireLen        uint32
	WireCRC32      uint32
	FrameCount     uint32
	DigestAlg      uint16
	Flags          uint16
	reserved       uint16
}

// Encode writes h in the fixed 30-byte layout.
func (h *SegmentHeader) Encode() []byte {
	buf := make([]byte, SegmentHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.SegmentIndex)
	binary.LittleEndian.PutUint32(buf[8:12], h.CompressedLen)
	binary.LittleEndian.PutUint32(buf[12:16], h.WireLen)
	binary.LittleEndian.PutUint32(buf[16:20], h.WireCRC32)
	binary.LittleEndian.PutUint32(buf[20:24], h.FrameCount)
	binary.LittleEndian.PutUint16(buf[24:26], h.DigestAlg)
	binary.LittleEndian.PutUint16(buf[26:28], h.Flags)
	// buf[28:30] reserved, left zero.
	return buf
}

// DecodeSegmentHeader parses a SegmentHeader from buf.
func DecodeSegmentHeader(buf []byte) (*SegmentHeader, error) {
	if len(buf) < SegmentHeaderSize {
		return nil, errs.Framing("decode_segment_header", errTruncated)
	}
	h := &SegmentHeader{
		SegmentIndex:  binary.LittleEndian.Uint64(buf[0:8]),
		CompressedLen: binary.LittleEndian.Uint32(buf[8:12]),
		WireLen:       binary.LittleEndian.Uint32(buf[12:16]),
		WireCRC32:     binary.LittleEndian.Uint32(buf[16:20]),
		FrameCount:    binary.LittleEndian.Uint32(buf[20:24]),
		DigestAlg:     binary.LittleEndian.Uint16(buf[24:26]),
		Flags:         binary.LittleEndian.Uint16(buf[26:28]),
	}
	if h.Flags&SegmentFlagFinal == 0 && h.FrameCount < 3 {
		return nil, errs.Protocol("decode_segment_header", errShortFrameCount)
	}
	return h, nil
}

// IsFinal reports whether h marks the end-of-stream sentinel segment.
func (h *SegmentHeader) IsFinal() bool {
	return h.Flags&SegmentFlagFinal != 0
}

// FrameHeader is the fixed header that precedes every frame's
// ciphertext.
type FrameHeader struct {
	SegmentIndex  uint64
	FrameIndex    uint32
	FrameType     uint16
	CiphertextLen uint32
	reserved      uint16
}

// EncodeFrame returns a single allocation: header || ciphertext.
func EncodeFrame(h FrameHeader, ciphertext []byte) []byte {
	h.CiphertextLen = uint32(len(ciphertext))
	out := make([]byte, FrameHeaderSize+len(ciphertext))
	encodeFrameHeader(out[:FrameHeaderSize], h)
	copy(out[FrameHeaderSize:], ciphertext)
	return out
}

func encodeFrameHeader(buf []byte, h FrameHeader) {
	binary.LittleEndian.PutUint64(buf[0:8], h.SegmentIndex)
	binary.LittleEndian.PutUint32(buf[8:12], h.FrameIndex)
	binary.LittleEndian.PutUint16(buf[12:14], h.FrameType)
	binary.LittleEndian.PutUint32(buf[14:18], h.CiphertextLen)
	// buf[18:20] reserved, left zero.
}

// ParseFrameHeader reads a fixed-size FrameHeader from the front of buf.
// Allocation-free: it returns a value type, never retaining buf.
func ParseFrameHeader(buf []byte) (FrameHeader, error) {
	if len(buf) < FrameHeaderSize {
		return FrameHeader{}, errs.Framing("parse_frame_header", errTruncated)
	}
	h := FrameHeader{
		SegmentIndex:  binary.LittleEndian.Uint64(buf[0:8]),
		FrameIndex:    binary.LittleEndian.Uint32(buf[8:12]),
		FrameType:     binary.LittleEndian.Uint16(buf[12:14]),
		CiphertextLen: binary.LittleEndian.Uint32(buf[14:18]),
	}
	if h.FrameType != FrameTypeData && h.FrameType != FrameTypeDigest && h.FrameType != FrameTypeTerminator {
		return FrameHeader{}, errs.Framing("parse_frame_header", errUnknownFrameType)
	}
	return h, nil
}

// FrameRange is a byte range into a segment's wire buffer: the frame's
// header is buf[Start:Start+FrameHeaderSize], its ciphertext is
// buf[Start+FrameHeaderSize : End].
type FrameRange struct {
	Header FrameHeader
	Start  int
	End    int
}

// Ciphertext returns the frame's ciphertext (including the AEAD tag):
// the bytes of wire after the FrameHeaderSize-byte header, up to End.
func (r FrameRange) Ciphertext(wire []byte) []byte {
	return wire[r.Start+FrameHeaderSize : r.End]
}

// SplitFrames walks a segment's wire bytes header-by-header and returns
// byte ranges without copying ciphertext. It is the sole legal way to
// produce frame boundaries for the segment worker.
func SplitFrames(segmentWire []byte) ([]FrameRange, error) {
	var ranges []FrameRange
	offset := 0
	for offset < len(segmentWire) {
		h, err := ParseFrameHeader(segmentWire[offset:])
		if err != nil {
			return nil, err
		}
		frameEnd := offset + FrameHeaderSize + int(h.CiphertextLen)
		if frameEnd > len(segmentWire) {
			return nil, errs.Framing("split_frames", errLengthMismatch)
		}
		ranges = append(ranges, FrameRange{Header: h, Start: offset, End: frameEnd})
		offset = frameEnd
	}
	return ranges, nil
}
