package crypto

import "errors"

var (
	// ErrIntegrity indicates an authenticated-encryption tag mismatch: the
	// wrong secret was used, or the envelope was tampered with or corrupted.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrFormat indicates an envelope or its decrypted payload does not have
	// the expected shape.
	ErrFormat = errors.New("malformed payload")
	// ErrSecretTooLong is returned when a master secret exceeds what the
	// verifier can hash without truncation.
	ErrSecretTooLong = errors.New("secret too long")
	// ErrEmptySecret is returned when an empty secret is supplied.
	ErrEmptySecret = errors.New("secret must not be empty")
)
