package digest

import "errors"

var (
	errUnknownAlg = errors.New("unknown digest algorithm")
	errMismatch   = errors.New("recomputed digest does not match digest frame")
)
