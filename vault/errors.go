package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConfigured indicates a master secret has already been set up.
	ErrAlreadyConfigured = errors.New("master secret already configured")
	// ErrAuthentication indicates the supplied master secret did not verify,
	// or no master secret is configured.
	ErrAuthentication = errors.New("authentication failed")
	// ErrInvalidSession indicates the session token is unknown, inactive or expired.
	ErrInvalidSession = errors.New("invalid session")
	// ErrInvalidEntry indicates entry data failed validation.
	ErrInvalidEntry = errors.New("invalid entry")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEntry, fmt.Sprintf(format, args...))
}
