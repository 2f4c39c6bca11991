// Package auth provides the credential hashing and token cryptography
// used to gate every API request.
package auth

import (
	"errors"
	"fmt"
)

// Secret key material sizes. AUTH_SECRET must carry at least enough raw
// bytes for both the cipher key and the IV.
const (
	SecretKeyLen = 32
	SecretIVLen  = 16
	SecretMinLen = SecretKeyLen + SecretIVLen
)

// ErrSecretTooShort indicates the configured secret cannot supply a full
// key and IV.
var ErrSecretTooShort = errors.New("auth secret is too short")

// Secret is the process-wide token secret, split once at startup into an
// AES-256 key and a CBC initialization vector. It is immutable and safe to
// share across request handlers.
type Secret struct {
	key [SecretKeyLen]byte
	iv  [SecretIVLen]byte
}

// NewSecret builds a Secret from raw key material. Material shorter than
// 48 bytes is a fatal configuration error for callers.
func NewSecret(material []byte) (*Secret, error) {
	if len(material) < SecretMinLen {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrSecretTooShort, SecretMinLen, len(material))
	}

	var s Secret
	copy(s.key[:], material[:SecretKeyLen])
	copy(s.iv[:], material[SecretKeyLen:SecretMinLen])
	return &s, nil
}

// Key returns the 32-byte cipher key.
func (s *Secret) Key() []byte {
	return s.key[:]
}

// IV returns the 16-byte initialization vector.
func (s *Secret) IV() []byte {
	return s.iv[:]
}
