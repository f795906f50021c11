package vault

import (
	"log/slog"
	"time"
)

const (
	// DefaultSessionTTL is how long a session stays usable after login.
	DefaultSessionTTL = 4 * time.Hour
	// DefaultEntryTTL is how long an entry lives before the sweep removes it.
	DefaultEntryTTL = 24 * time.Hour
)

// Option configures a Vault.
type Option func(*Vault)

// WithClock overrides the time source. Tests use it to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		if now != nil {
			v.now = now
		}
	}
}

// WithSessionTTL sets the session lifetime. Non-positive values are ignored.
func WithSessionTTL(ttl time.Duration) Option {
	return func(v *Vault) {
		if ttl > 0 {
			v.sessionTTL = ttl
		}
	}
}

// WithEntryTTL sets the entry lifetime. Non-positive values are ignored.
func WithEntryTTL(ttl time.Duration) Option {
	return func(v *Vault) {
		if ttl > 0 {
			v.entryTTL = ttl
		}
	}
}

// WithLogger sets the logger used for warnings and sweep reports.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) {
		if logger != nil {
			v.logger = logger
		}
	}
}
