package segment

import "errors"

var (
	errWireLenMismatch    = errors.New("wire length does not match segment header")
	errCorruptSegment     = errors.New("wire_crc32 mismatch")
	errTooFewFrames       = errors.New("fewer than 3 frames in non-final segment")
	errFrameIndexRange    = errors.New("data frame_index out of range")
	errDuplicateDataFrame = errors.New("duplicate data frame_index")
	errDuplicateDigest    = errors.New("duplicate digest frame")
	errDuplicateTerminator = errors.New("duplicate terminator frame")
	errMissingDigest      = errors.New("missing digest frame")
	errMissingTerminator  = errors.New("missing terminator frame")
	errMissingDataFrame   = errors.New("missing data frame")
	errFrameIndexOrder    = errors.New("data frame_index out of order")
	errBadTerminator      = errors.New("terminator frame_index or payload invalid")
)
