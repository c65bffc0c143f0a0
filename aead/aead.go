// Package aead defines the AEAD capability interface external to the
// frame worker and ships two concrete suites so the pipeline has
// something to dispatch to by cipher_id: AES-256-GCM (stdlib) and
// ChaCha20-Poly1305 (golang.org/x/crypto/chacha20poly1305).
package aead

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher suite ids carried in StreamHeader.CipherSuiteID.
const (
	SuiteChaCha20Poly1305 uint8 = 1
	SuiteAES256GCM        uint8 = 2
)

// Suite seals and opens AEAD payloads for one stream's session key.
// Implementations are stateless beyond the key; nonce uniqueness is the
// frame worker's responsibility (KDF_nonce), not the suite's.
type Suite interface {
	// Seal appends ciphertext||tag to dst and returns the result.
	Seal(dst, nonce, plaintext, aad []byte) []byte
	// Open authenticates and decrypts ciphertext||tag, appending
	// plaintext to dst.
	Open(dst, nonce, ciphertext, aad []byte) ([]byte, error)
	NonceSize() int
	KeySize() int
}

type chachaSuite struct{ aead cipher.AEAD }

// NewChaCha20Poly1305 builds a Suite from a 32-byte session key.
func NewChaCha20Poly1305(key []byte) (Suite, error) {
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &chachaSuite{aead: a}, nil
}

func (s *chachaSuite) Seal(dst, nonce, plaintext, aad []byte) []byte {
	return s.aead.Seal(dst, nonce, plaintext, aad)
}

func (s *chachaSuite) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	return s.aead.Open(dst, nonce, ciphertext, aad)
}

func (s *chachaSuite) NonceSize() int { return s.aead.NonceSize() }
func (s *chachaSuite) KeySize() int   { return chacha20poly1305.KeySize }

type gcmSuite struct{ aead cipher.AEAD }

// NewAES256GCM builds a Suite from a 32-byte session key.
func NewAES256GCM(key []byte) (Suite, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	a, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &gcmSuite{aead: a}, nil
}

func (s *gcmSuite) Seal(dst, nonce, plaintext, aad []byte) []byte {
	return s.aead.Seal(dst, nonce, plaintext, aad)
}

func (s *gcmSuite) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	return s.aead.Open(dst, nonce, ciphertext, aad)
}

func (s *gcmSuite) NonceSize() int { return s.aead.NonceSize() }
func (s *gcmSuite) KeySize() int   { return 32 }

// Factory builds a Suite from a session key; bound into a
// registry.Registry[Factory] keyed by CipherSuiteID.
type Factory func(sessionKey []byte) (Suite, error)

// DefaultFactories returns the built-in cipher_id -> Factory bindings.
func DefaultFactories() map[uint8]Factory {
	return map[uint8]Factory{
		SuiteChaCha20Poly1305: NewChaCha20Poly1305,
		SuiteAES256GCM:        NewAES256GCM,
	}
}
