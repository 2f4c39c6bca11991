package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// cipherBufLen bounds how much data each CBC pass touches.
const cipherBufLen = 4096

var (
	// ErrInvalidKeySize indicates the cipher key is not 32 bytes.
	ErrInvalidKeySize = errors.New("cipher key must be 32 bytes")
	// ErrInvalidIVSize indicates the IV is not one AES block.
	ErrInvalidIVSize = errors.New("cipher iv must be 16 bytes")
	// ErrInvalidCiphertext indicates ciphertext that cannot have been
	// produced under this key and IV: empty, truncated, non-block-aligned,
	// or carrying bad padding. Routine for stale or tampered tokens.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Encrypt applies AES-256-CBC with PKCS#7 padding. It holds no state
// between calls and is safe for concurrent use.
func Encrypt(data, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}

	padded := padPKCS7(data, aes.BlockSize)
	out := make([]byte, len(padded))

	enc := cipher.NewCBCEncrypter(block, iv)
	for off := 0; off < len(padded); off += cipherBufLen {
		end := off + cipherBufLen
		if end > len(padded) {
			end = len(padded)
		}
		enc.CryptBlocks(out[off:end], padded[off:end])
	}

	return out, nil
}

// Decrypt reverses Encrypt. Malformed input of any kind yields
// ErrInvalidCiphertext rather than a panic.
func Decrypt(data, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}

	out := make([]byte, len(data))

	dec := cipher.NewCBCDecrypter(block, iv)
	for off := 0; off < len(data); off += cipherBufLen {
		end := off + cipherBufLen
		if end > len(data) {
			end = len(data)
		}
		dec.CryptBlocks(out[off:end], data[off:end])
	}

	return unpadPKCS7(out, aes.BlockSize)
}

func newBlock(key, iv []byte) (cipher.Block, error) {
	if len(key) != SecretKeyLen {
		return nil, ErrInvalidKeySize
	}
	if len(iv) != aes.BlockSize {
		return nil, ErrInvalidIVSize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	return block, nil
}

func padPKCS7(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidCiphertext
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrInvalidCiphertext
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidCiphertext
		}
	}

	return data[:len(data)-n], nil
}
