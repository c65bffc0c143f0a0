package wire

import "errors"

var (
	errTruncated        = errors.New("truncated buffer")
	errBadMagic         = errors.New("bad magic")
	errBadVersion       = errors.New("unsupported protocol version")
	errBadChunkSize     = errors.New("chunk size not in allowed set")
	errZeroSalt         = errors.New("stream salt is all-zero")
	errLengthMismatch   = errors.New("frame length exceeds segment wire")
	errUnknownFrameType = errors.New("unknown frame type")
	errShortFrameCount  = errors.New("frame_count below minimum for non-final segment")
)
