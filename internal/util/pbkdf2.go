package util

import (
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

type PBKDF2Params struct {
	Iterations int `json:"iterations"`
	KeyLen     int `json:"key_len"`
}

func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{
		Iterations: 100_000,
		KeyLen:     32,
	}
}

// DerivePBKDF2Key derives a key with PBKDF2-HMAC-SHA512.
func DerivePBKDF2Key(secret, salt []byte, params PBKDF2Params) ([]byte, error) {
	if params.KeyLen != AESKeySize {
		return nil, fmt.Errorf("pbkdf2 key length must be %d bytes", AESKeySize)
	}
	if params.Iterations < 1 {
		return nil, fmt.Errorf("pbkdf2 iterations must be positive")
	}
	return pbkdf2.Key(secret, salt, params.Iterations, params.KeyLen, sha512.New), nil
}
