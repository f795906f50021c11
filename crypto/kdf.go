// Package crypto implements the key derivation, envelope encryption and
// master-secret verification primitives used by the vault.
package crypto

import (
	"fmt"

	"github.com/jmcleod/ironshare/internal/util"
)

const (
	// SaltSize is the size of every freshly generated envelope or session salt.
	SaltSize = 32
	// KeySize is the size of every derived symmetric key.
	KeySize = util.AESKeySize

	minSaltSize = 16
)

var kdfParams = util.DefaultPBKDF2Params()

// KDFIterations reports the fixed PBKDF2 iteration count.
func KDFIterations() int {
	return kdfParams.Iterations
}

// NewSalt returns SaltSize bytes from a cryptographically secure source.
func NewSalt() ([]byte, error) {
	return util.RandomBytes(SaltSize)
}

// DeriveKey turns a secret and salt into a KeySize symmetric key using
// PBKDF2-HMAC-SHA512. The same secret and salt always yield the same key.
// Callers should wipe the returned key when done.
func DeriveKey(secret, salt []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if len(salt) < minSaltSize {
		return nil, fmt.Errorf("salt must be at least %d bytes, got %d", minSaltSize, len(salt))
	}
	return util.DerivePBKDF2Key(secret, salt, kdfParams)
}
