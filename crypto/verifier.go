package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/jmcleod/ironshare/internal/util"
)

// BcryptCost is the fixed work factor for master-secret hashes.
const BcryptCost = 12

// MaxSecretLen is the longest secret bcrypt hashes without truncation.
const MaxSecretLen = 72

// HashSecret produces a one-way salted bcrypt hash of secret. The returned
// salt is the salt component embedded in the hash.
func HashSecret(secret []byte) (hashed, salt []byte, err error) {
	if len(secret) == 0 {
		return nil, nil, ErrEmptySecret
	}
	if len(secret) > MaxSecretLen {
		return nil, nil, fmt.Errorf("%d bytes exceeds %d: %w", len(secret), MaxSecretLen, ErrSecretTooLong)
	}
	hashed, err = bcrypt.GenerateFromPassword(secret, BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing secret: %w", err)
	}
	return hashed, bcryptSalt(hashed), nil
}

// VerifySecret reports whether secret matches hashed. The comparison runs in
// constant time with respect to the hash contents.
func VerifySecret(secret, hashed []byte) bool {
	if len(secret) == 0 || len(hashed) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hashed, secret) == nil
}

// bcryptSalt extracts the 22 character salt from a "$2a$NN$<salt><hash>"
// string.
func bcryptSalt(hashed []byte) []byte {
	const prefixLen, saltLen = 7, 22
	if len(hashed) < prefixLen+saltLen {
		return nil
	}
	return util.CopyBytes(hashed[prefixLen : prefixLen+saltLen])
}
