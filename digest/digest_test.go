package digest

import (
	"bytes"
	"testing"
)

// TestEngineVerifierAgree verifies a digest computed by Engine and
// recomputed by Verifier over the same frames agree.
func TestEngineVerifierAgree(t *testing.T) {
	frames := [][]byte{[]byte("frame-0"), []byte("frame-1"), []byte("frame-2")}

	eng, err := New(AlgSHA256, 5, uint32(len(frames)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i, f := range frames {
		eng.UpdateFrame(uint32(i), f)
	}
	sum := eng.Finalize()

	verifier, err := NewVerifier(AlgSHA256, 5, uint32(len(frames)), sum)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	for i, f := range frames {
		verifier.UpdateFrame(uint32(i), f)
	}
	if err := verifier.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

// TestVerifierRejectsTamperedCiphertext verifies a bit flip in any
// frame's ciphertext is caught.
func TestVerifierRejectsTamperedCiphertext(t *testing.T) {
	frames := [][]byte{[]byte("frame-0"), []byte("frame-1")}

	eng, _ := New(AlgSHA256, 1, uint32(len(frames)))
	for i, f := range frames {
		eng.UpdateFrame(uint32(i), f)
	}
	sum := eng.Finalize()

	tampered := append([]byte(nil), frames[1]...)
	tampered[0] ^= 0xFF

	verifier, _ := NewVerifier(AlgSHA256, 1, uint32(len(frames)), sum)
	verifier.UpdateFrame(0, frames[0])
	verifier.UpdateFrame(1, tampered)
	if err := verifier.Finalize(); err == nil {
		t.Fatal("expected digest mismatch on tampered ciphertext")
	}
}

// TestVerifierRejectsWrongSegmentIndex verifies the digest is bound to
// segment_index, not just the frame contents.
func TestVerifierRejectsWrongSegmentIndex(t *testing.T) {
	frames := [][]byte{[]byte("frame-0")}

	eng, _ := New(AlgSHA256, 1, uint32(len(frames)))
	eng.UpdateFrame(0, frames[0])
	sum := eng.Finalize()

	verifier, _ := NewVerifier(AlgSHA256, 2, uint32(len(frames)), sum)
	verifier.UpdateFrame(0, frames[0])
	if err := verifier.Finalize(); err == nil {
		t.Fatal("expected digest mismatch for different segment_index")
	}
}

// TestUpdateFramePanicsOutOfOrder verifies skipping a frame_index
// panics rather than silently corrupting the digest.
func TestUpdateFramePanicsOutOfOrder(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-order UpdateFrame")
		}
	}()
	eng, _ := New(AlgSHA256, 0, 2)
	eng.UpdateFrame(0, []byte("a"))
	eng.UpdateFrame(2, []byte("b")) // skips index 1
}

// TestBlake3Digest verifies the BLAKE3 algorithm path also round-trips.
func TestBlake3Digest(t *testing.T) {
	eng, err := New(AlgBLAKE3, 0, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.UpdateFrame(0, []byte("payload"))
	sum := eng.Finalize()
	if len(sum) != 32 {
		t.Fatalf("blake3 digest length = %d, want 32", len(sum))
	}

	verifier, err := NewVerifier(AlgBLAKE3, 0, 1, sum)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	verifier.UpdateFrame(0, []byte("payload"))
	if err := verifier.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

// TestUnknownAlgorithmRejected verifies New refuses an unregistered
// digest algorithm id.
func TestUnknownAlgorithmRejected(t *testing.T) {
	if _, err := New(99, 0, 1); err == nil {
		t.Fatal("expected error for unknown digest algorithm")
	}
}

// TestDifferentFramesProduceDifferentDigests is a sanity check that the
// digest actually depends on frame content.
func TestDifferentFramesProduceDifferentDigests(t *testing.T) {
	eng1, _ := New(AlgSHA256, 0, 1)
	eng1.UpdateFrame(0, []byte("alpha"))
	sum1 := eng1.Finalize()

	eng2, _ := New(AlgSHA256, 0, 1)
	eng2.UpdateFrame(0, []byte("beta"))
	sum2 := eng2.Finalize()

	if bytes.Equal(sum1, sum2) {
		t.Fatal("different frame content should produce different digests")
	}
}
