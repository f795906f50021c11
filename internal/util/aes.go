package util

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

const (
	AESKeySize   = 32
	GCMNonceSize = 12
	GCMTagSize   = 16
)

// ErrAuthFailed is returned when GCM tag verification fails.
var ErrAuthFailed = errors.New("message authentication failed")

func newGCM(rawKey []byte) (cipher.AEAD, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return gcm, nil
}

// SealAESGCM encrypts plainText under rawKey and returns the ciphertext and
// the authentication tag as separate slices. The nonce must be GCMNonceSize
// bytes and must never repeat for the same key.
func SealAESGCM(plainText, rawKey, nonce, aad []byte) (cipherText, tag []byte, err error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(nonce), gcm.NonceSize())
	}

	sealed := gcm.Seal(nil, nonce, plainText, aad)
	split := len(sealed) - gcm.Overhead()
	return sealed[:split], sealed[split:], nil
}

// OpenAESGCM verifies tag and decrypts cipherText. A tag mismatch is
// reported as ErrAuthFailed.
func OpenAESGCM(cipherText, tag, rawKey, nonce, aad []byte) ([]byte, error) {
	gcm, err := newGCM(rawKey)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(nonce), gcm.NonceSize())
	}
	if len(tag) != gcm.Overhead() {
		return nil, fmt.Errorf("invalid tag size: got %d, want %d", len(tag), gcm.Overhead())
	}

	// Reassemble ciphertext || tag without mutating the caller's slices.
	full := make([]byte, len(cipherText)+len(tag))
	copy(full, cipherText)
	copy(full[len(cipherText):], tag)

	plainText, err := gcm.Open(nil, nonce, full, aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plainText, nil
}
