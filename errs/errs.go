// Package errs defines the typed error taxonomy shared across the
// segmented AEAD pipeline: framing, crypto, protocol, digest, I/O and
// pipeline-lifecycle errors. Every constructor returns an *Error tagged
// with its Kind and wrapped with stack context, so callers can classify
// a failure with Is (or errors.As to *Error) after further wrapping.
package errs

import "github.com/pkg/errors"

// Kind classifies a pipeline failure per the spec's error taxonomy.
type Kind int

const (
	KindFraming Kind = iota + 1
	KindCrypto
	KindProtocol
	KindDigestMismatch
	KindIO
	KindPipeline
)

func (k Kind) String() string {
	switch k {
	case KindFraming:
		return "framing"
	case KindCrypto:
		return "crypto"
	case KindProtocol:
		return "protocol"
	case KindDigestMismatch:
		return "digest_mismatch"
	case KindIO:
		return "io"
	case KindPipeline:
		return "pipeline"
	default:
		return "unknown"
	}
}

// Error is a typed, classifiable pipeline error.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.Kind.String() + ": " + e.Op
	}
	return e.Kind.String() + ": " + e.Op + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

func newf(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, err: err}
}

// Framing wraps a framing-codec failure (truncated buffer, length
// mismatch, bad magic/version, unknown frame type). Non-retryable.
func Framing(op string, cause error) error {
	return errors.WithStack(newf(KindFraming, op, cause))
}

// AeadSeal wraps an AEAD seal failure. This is a programming error
// (bad key length, nonce reuse detected by the cipher) and is fatal.
func AeadSeal(op string, cause error) error {
	return errors.WithStack(newf(KindCrypto, op, cause))
}

// AeadOpen wraps an AEAD authentication failure. The containing segment
// aborts; other segments proceed.
func AeadOpen(op string, cause error) error {
	return errors.WithStack(newf(KindCrypto, op, cause))
}

// Protocol wraps a protocol-ordering violation: duplicate Digest or
// Terminator frame, missing frame, out-of-range frame_index, wrong
// Terminator index, invalid wire_crc32.
func Protocol(op string, cause error) error {
	return errors.WithStack(newf(KindProtocol, op, cause))
}

// DigestMismatch wraps a segment digest verification failure.
func DigestMismatch(op string, cause error) error {
	return errors.WithStack(newf(KindDigestMismatch, op, cause))
}

// IO wraps a short read/write or upstream source/sink failure.
func IO(op string, cause error) error {
	return errors.WithStack(newf(KindIO, op, cause))
}

// Pipeline wraps a worker-lifecycle failure: a channel closed
// unexpectedly, or shutdown already in progress.
func Pipeline(op string, cause error) error {
	return errors.WithStack(newf(KindPipeline, op, cause))
}

// Is reports whether err (or anything it wraps) is a pipeline Error of
// the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
