package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/ironshare/crypto"
	"github.com/jmcleod/ironshare/internal/util"
	"github.com/jmcleod/ironshare/internal/uuid"
	"github.com/jmcleod/ironshare/storage"
)

// Vault is the lifecycle manager. It composes the master-secret verifier,
// the session vault and the entry store over a single repository. A Vault is
// safe for concurrent use; all state lives in the repository.
type Vault struct {
	repo       storage.Repository
	now        func() time.Time
	sessionTTL time.Duration
	entryTTL   time.Duration
	logger     *slog.Logger

	sessions *sessionVault
	entries  *entryStore
}

// New returns a Vault backed by repo.
func New(repo storage.Repository, opts ...Option) *Vault {
	v := &Vault{
		repo:       repo,
		now:        time.Now,
		sessionTTL: DefaultSessionTTL,
		entryTTL:   DefaultEntryTTL,
		logger:     slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With(slog.String("component", "vault"))
	v.sessions = &sessionVault{store: repo, now: v.now, ttl: v.sessionTTL}
	v.entries = &entryStore{store: repo, sessions: v.sessions, now: v.now, ttl: v.entryTTL, logger: v.logger}
	return v
}

// Logger returns the vault's logger.
func (v *Vault) Logger() *slog.Logger {
	return v.logger
}

// secretBuffer normalises secret into a locked buffer. The caller must
// Destroy it.
func secretBuffer(secret string) (*memguard.LockedBuffer, error) {
	if secret == "" {
		return nil, crypto.ErrEmptySecret
	}
	return memguard.NewBufferFromBytes([]byte(util.Normalize(secret))), nil
}

// ConfigureMasterSecret hashes and stores the master secret. It can succeed
// only once per repository.
func (v *Vault) ConfigureMasterSecret(ctx context.Context, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := secretBuffer(secret)
	if err != nil {
		return err
	}
	defer buf.Destroy()

	if _, err := v.repo.GetMasterSecret(ctx); err == nil {
		return ErrAlreadyConfigured
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("loading master secret: %w", err)
	}

	hashed, salt, err := crypto.HashSecret(buf.Bytes())
	if err != nil {
		return err
	}
	rec := &storage.MasterSecretRecord{
		ID:           uuid.New(),
		HashedSecret: hashed,
		Salt:         salt,
		CreatedAt:    v.now(),
	}
	if err := v.repo.CreateMasterSecret(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrAlreadyConfigured
		}
		return fmt.Errorf("storing master secret: %w", err)
	}
	return nil
}

// IsConfigured reports whether a master secret has been set up.
func (v *Vault) IsConfigured(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := v.repo.GetMasterSecret(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Login verifies secret and opens a new session.
func (v *Vault) Login(ctx context.Context, secret string) (*SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if secret == "" {
		return nil, ErrAuthentication
	}
	buf, err := secretBuffer(secret)
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	return v.sessions.create(ctx, v.repo, buf)
}

// Logout deactivates the session. Unknown or already inactive tokens are
// not an error.
func (v *Vault) Logout(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.sessions.invalidate(ctx, token)
}

// VerifySession reports whether token names an active, unexpired session.
// The error is non-nil only when the repository fails.
func (v *Vault) VerifySession(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return v.sessions.verify(ctx, token)
}

// SessionID returns the ID of the usable session named by token, for audit
// logging.
func (v *Vault) SessionID(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, err := v.sessions.lookup(ctx, token)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// CreateEntry encrypts data under the session's master secret and stores it.
func (v *Vault) CreateEntry(ctx context.Context, token string, data EntryData) (*EntryInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.entries.create(ctx, token, data)
}

// ListEntries returns every visible entry, newest first.
func (v *Vault) ListEntries(ctx context.Context, token string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.entries.listActive(ctx, token)
}

// DeleteAllEntries soft-deletes every visible entry and returns the count.
func (v *Vault) DeleteAllEntries(ctx context.Context, token string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return v.entries.softDeleteAll(ctx, token)
}

// SweepExpiredSessions hard-deletes sessions past their expiry.
func (v *Vault) SweepExpiredSessions(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return v.sessions.sweepExpired(ctx)
}

// PurgeExpiredEntries hard-deletes entries past their expiry, deleted or not.
func (v *Vault) PurgeExpiredEntries(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return v.entries.purgeExpired(ctx)
}
