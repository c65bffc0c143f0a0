// Package recovery implements the record codec for an append-only
// recovery journal: (last_committed_segment_index, checksum) records
// used on bootstrap to resume at the next segment. This package owns
// only the record shape and the resume decision; the journal's own
// persistence (file, object store, whatever) remains the caller's
// concern, following the same fixed-record framing discipline as
// package wire.
package recovery

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/xtls/segflow/errs"
)

// RecordSize is the fixed wire size of one journal record.
const RecordSize = 8 + 4 // last_committed_segment_index (u64) + checksum (u32)

// Record is one journal entry.
type Record struct {
	LastCommittedSegmentIndex uint64
	Checksum                  uint32
}

// Encode writes r in its fixed 12-byte layout.
func (r Record) Encode() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], r.LastCommittedSegmentIndex)
	binary.LittleEndian.PutUint32(buf[8:12], r.Checksum)
	return buf
}

// ChecksumFor computes the record checksum bound to a segment's wire
// bytes, so a resume decision can be cross-checked against the actual
// committed segment rather than trusting the index alone.
func ChecksumFor(segmentWire []byte) uint32 {
	return crc32.ChecksumIEEE(segmentWire)
}

// AppendRecord writes one record to the journal.
func AppendRecord(journal io.Writer, r Record) error {
	if _, err := journal.Write(r.Encode()); err != nil {
		return errs.IO("recovery_append", err)
	}
	return nil
}

// ResumeFrom reads every fixed-size record from journal and returns the
// next segment index to produce/expect: one past the last committed
// index recorded. An empty journal resumes at index 0.
func ResumeFrom(journal io.Reader) (nextSegmentIndex uint64, err error) {
	var last *Record
	buf := make([]byte, RecordSize)
	for {
		_, readErr := io.ReadFull(journal, buf)
		if readErr == io.EOF {
			break
		}
		if readErr == io.ErrUnexpectedEOF {
			// Truncated trailing record: ignore it, the same truncation
			// tolerance the segment reader applies to a partial tail.
			break
		}
		if readErr != nil {
			return 0, errs.IO("recovery_resume", readErr)
		}
		rec := Record{
			LastCommittedSegmentIndex: binary.LittleEndian.Uint64(buf[0:8]),
			Checksum:                  binary.LittleEndian.Uint32(buf[8:12]),
		}
		last = &rec
	}
	if last == nil {
		return 0, nil
	}
	return last.LastCommittedSegmentIndex + 1, nil
}
