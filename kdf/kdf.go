// Package kdf implements session-key derivation. This is the
// session-key KDF only — the per-frame nonce derivation lives in
// package frameworker and is a distinct, simpler construction; keeping
// DeriveSessionKey and the per-frame nonce counter in separate
// functions avoids conflating a rarely-run derivation with a per-frame
// hot path.
package kdf

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

// PRF ids carried in StreamHeader.PRFID.
const (
	PRFHKDFSHA256 uint8 = 1
	PRFHKDFSHA512 uint8 = 2
)

// Info binds the session key to the stream's magic, version, cipher,
// PRF, flags and key id, so a session key derived for one profile can
// never be reused under a different one.
type Info struct {
	Magic     uint32
	Version   uint8
	CipherID  uint8
	PRFID     uint8
	Flags     uint16
	KeyID     uint64
}

func (i Info) bytes() []byte {
	b := make([]byte, 0, 16)
	b = append(b, byte(i.Magic), byte(i.Magic>>8), byte(i.Magic>>16), byte(i.Magic>>24))
	b = append(b, i.Version, i.CipherID, i.PRFID, byte(i.Flags), byte(i.Flags>>8))
	for shift := 0; shift < 64; shift += 8 {
		b = append(b, byte(i.KeyID>>uint(shift)))
	}
	return b
}

func hashFuncFor(prfID uint8) func() hash.Hash {
	if prfID == PRFHKDFSHA512 {
		return sha512.New
	}
	return sha256.New
}

// DeriveSessionKey derives a session key of keyLen bytes from
// masterKey and salt using HKDF, binding info into the HKDF "info"
// parameter so the derived key is tied to the exact stream profile it
// was requested for.
func DeriveSessionKey(masterKey, salt []byte, info Info, keyLen int) ([]byte, error) {
	r := hkdf.New(hashFuncFor(info.PRFID), masterKey, salt, info.bytes())
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
