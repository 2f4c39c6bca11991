package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (OWASP recommended minimum).
const (
	hashTime    = 3
	hashMemory  = 64 * 1024 // 64 MB
	hashThreads = 4
	hashKeyLen  = 32
	hashSaltLen = 16
)

// MaxPasswordLen is the longest password accepted for hashing, in bytes.
const MaxPasswordLen = 72

const hashScheme = "argon2id"

var (
	// ErrPasswordTooLong indicates the password exceeds MaxPasswordLen bytes.
	ErrPasswordTooLong = errors.New("password is too long")
	// ErrInvalidCredential indicates a stored credential envelope is malformed.
	ErrInvalidCredential = errors.New("invalid credential format")
)

// HashPassword derives a storable credential from a plaintext password.
//
// The result is an opaque envelope "$<scheme>$<cost>$<base64 salt||key>".
// A fresh 16-byte salt is drawn per call, so hashing the same password twice
// yields different credentials. The base64 alphabet contains no '$', which
// keeps the envelope at exactly three delimited fields; token resolution
// counts on that.
func HashPassword(password []byte) (string, error) {
	if len(password) > MaxPasswordLen {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(password, salt, hashTime, hashMemory, hashThreads, hashKeyLen)

	blob := make([]byte, 0, hashSaltLen+hashKeyLen)
	blob = append(blob, salt...)
	blob = append(blob, key...)

	return fmt.Sprintf("$%s$%d$%s", hashScheme, hashTime, base64.RawStdEncoding.EncodeToString(blob)), nil
}

// VerifyPassword reports whether password matches the stored credential.
// Comparison of the derived keys is constant time.
func VerifyPassword(password []byte, credential string) (bool, error) {
	parts := strings.Split(credential, "$")
	if len(parts) != 4 || parts[0] != "" {
		return false, ErrInvalidCredential
	}
	if parts[1] != hashScheme {
		return false, ErrInvalidCredential
	}

	cost, err := strconv.Atoi(parts[2])
	if err != nil || cost < 1 {
		return false, ErrInvalidCredential
	}

	blob, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(blob) != hashSaltLen+hashKeyLen {
		return false, ErrInvalidCredential
	}

	salt := blob[:hashSaltLen]
	expected := blob[hashSaltLen:]

	computed := argon2.IDKey(password, salt, uint32(cost), hashMemory, hashThreads, hashKeyLen)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
