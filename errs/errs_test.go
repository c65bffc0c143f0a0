package errs

import (
	"errors"
	"strings"
	"testing"
)

// TestIsClassifiesWrappedKind verifies Is recognizes the kind of an
// error returned by a constructor, which wraps the *Error with
// pkg/errors.WithStack.
func TestIsClassifiesWrappedKind(t *testing.T) {
	err := Protocol("decode_segment_header", errors.New("short frame count"))
	if !Is(err, KindProtocol) {
		t.Fatal("expected Is to classify a Protocol error as KindProtocol")
	}
	if Is(err, KindCrypto) {
		t.Fatal("Protocol error should not classify as KindCrypto")
	}
}

// TestIsRejectsPlainError verifies Is returns false for errors that
// never passed through this package's constructors.
func TestIsRejectsPlainError(t *testing.T) {
	if Is(errors.New("plain error"), KindIO) {
		t.Fatal("plain error should not classify as any Kind")
	}
}

// TestErrorMessageIncludesCause verifies the formatted error message
// carries both the operation and the wrapped cause.
func TestErrorMessageIncludesCause(t *testing.T) {
	err := IO("write_segment_wire", errors.New("disk full"))
	msg := err.Error()
	if !strings.Contains(msg, "write_segment_wire") || !strings.Contains(msg, "disk full") {
		t.Fatalf("error message %q should carry the operation and the cause", msg)
	}
}
