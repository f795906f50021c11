// Package storage provides the storage abstraction layer for the master
// secret, session and entry records. Every sensitive field is opaque
// ciphertext or a one-way hash by the time it reaches this layer.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a uniqueness constraint rejects a write.
	ErrAlreadyExists = errors.New("already exists")
)

// MasterSecretStore persists the single master secret record.
type MasterSecretStore interface {
	// CreateMasterSecret stores rec. It fails with ErrAlreadyExists if a
	// master secret record is already present.
	CreateMasterSecret(ctx context.Context, rec *MasterSecretRecord) error
	// GetMasterSecret returns the master secret record or ErrNotFound.
	GetMasterSecret(ctx context.Context) (*MasterSecretRecord, error)
}

// SessionStore persists session records keyed by token hash.
type SessionStore interface {
	// PutSession stores a new session. A duplicate token hash fails with
	// ErrAlreadyExists.
	PutSession(ctx context.Context, rec *SessionRecord) error
	// GetSession returns the session for tokenHash or ErrNotFound. Inactive
	// and expired sessions are returned as-is; callers decide usability.
	GetSession(ctx context.Context, tokenHash string) (*SessionRecord, error)
	// DeactivateSession clears the active flag. It returns ErrNotFound when
	// no session matches.
	DeactivateSession(ctx context.Context, tokenHash string) error
	// DeleteExpiredSessions hard-deletes every session with
	// ExpiresAt <= now, active or not, and returns the number removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// EntryStore persists encrypted entry records.
type EntryStore interface {
	// PutEntry stores a new entry record.
	PutEntry(ctx context.Context, rec *EntryRecord) error
	// ListActiveEntries returns entries with Deleted=false and
	// ExpiresAt > now, newest first.
	ListActiveEntries(ctx context.Context, now time.Time) ([]*EntryRecord, error)
	// SoftDeleteEntries sets Deleted on every entry with Deleted=false and
	// ExpiresAt > now and returns the number flagged.
	SoftDeleteEntries(ctx context.Context, now time.Time) (int, error)
	// DeleteExpiredEntries hard-deletes every entry with ExpiresAt <= now,
	// deleted or not, and returns the number removed.
	DeleteExpiredEntries(ctx context.Context, now time.Time) (int, error)
}

// Repository is the full persistence surface used by the vault.
type Repository interface {
	MasterSecretStore
	SessionStore
	EntryStore
	Close() error
}
