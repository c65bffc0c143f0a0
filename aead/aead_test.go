package aead

import (
	"bytes"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 11)
	}
	return key
}

// TestChaCha20Poly1305SealOpenRoundTrip verifies the ChaCha20-Poly1305
// suite seals and opens symmetrically.
func TestChaCha20Poly1305SealOpenRoundTrip(t *testing.T) {
	s, err := NewChaCha20Poly1305(testKey())
	if err != nil {
		t.Fatalf("NewChaCha20Poly1305: %v", err)
	}
	nonce := make([]byte, s.NonceSize())
	aadBytes := []byte("associated-data")
	plaintext := []byte("secret message")

	sealed := s.Seal(nil, nonce, plaintext, aadBytes)
	opened, err := s.Open(nil, nonce, sealed, aadBytes)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("opened plaintext mismatch: got %q", opened)
	}
}

// TestAES256GCMSealOpenRoundTrip verifies the AES-256-GCM suite seals
// and opens symmetrically.
func TestAES256GCMSealOpenRoundTrip(t *testing.T) {
	s, err := NewAES256GCM(testKey())
	if err != nil {
		t.Fatalf("NewAES256GCM: %v", err)
	}
	nonce := make([]byte, s.NonceSize())
	aadBytes := []byte("associated-data")
	plaintext := []byte("secret message")

	sealed := s.Seal(nil, nonce, plaintext, aadBytes)
	opened, err := s.Open(nil, nonce, sealed, aadBytes)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("opened plaintext mismatch: got %q", opened)
	}
}

// TestOpenRejectsWrongAAD verifies both suites reject ciphertext when
// the associated data at Open time doesn't match Seal time.
func TestOpenRejectsWrongAAD(t *testing.T) {
	for _, build := range []func([]byte) (Suite, error){NewChaCha20Poly1305, NewAES256GCM} {
		s, _ := build(testKey())
		nonce := make([]byte, s.NonceSize())
		sealed := s.Seal(nil, nonce, []byte("data"), []byte("aad-a"))
		if _, err := s.Open(nil, nonce, sealed, []byte("aad-b")); err == nil {
			t.Fatal("expected AEAD open failure for mismatched AAD")
		}
	}
}

// TestDefaultFactoriesCoverBothSuites verifies the factory map has
// entries for both shipped cipher ids.
func TestDefaultFactoriesCoverBothSuites(t *testing.T) {
	factories := DefaultFactories()
	for _, id := range []uint8{SuiteChaCha20Poly1305, SuiteAES256GCM} {
		f, ok := factories[id]
		if !ok {
			t.Fatalf("missing factory for cipher id %d", id)
		}
		if _, err := f(testKey()); err != nil {
			t.Fatalf("factory for cipher id %d failed: %v", id, err)
		}
	}
}
