package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/ironshare/crypto"
	"github.com/jmcleod/ironshare/internal/util"
	"github.com/jmcleod/ironshare/internal/uuid"
	"github.com/jmcleod/ironshare/storage"
)

// tokenHalfBytes is the size of each of the two random draws that make up a
// session token.
const tokenHalfBytes = 32

// sessionVault issues and resolves session tokens. Each session row holds the
// master secret sealed under a key derived from the token, so the token is
// required to recover it.
type sessionVault struct {
	store storage.SessionStore
	now   func() time.Time
	ttl   time.Duration
}

func newSessionToken() (string, error) {
	a, err := util.RandomHex(tokenHalfBytes)
	if err != nil {
		return "", err
	}
	b, err := util.RandomHex(tokenHalfBytes)
	if err != nil {
		return "", err
	}
	return a + b, nil
}

// create verifies candidate against the stored master secret and persists a
// new session. Nothing is written on failure.
func (s *sessionVault) create(ctx context.Context, masters storage.MasterSecretStore, candidate *memguard.LockedBuffer) (*SessionInfo, error) {
	master, err := masters.GetMasterSecret(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrAuthentication
	}
	if err != nil {
		return nil, fmt.Errorf("loading master secret: %w", err)
	}
	if !crypto.VerifySecret(candidate.Bytes(), master.HashedSecret) {
		return nil, ErrAuthentication
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}
	sealed, err := crypto.Seal(candidate.Bytes(), []byte(token), crypto.PurposeSession)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &storage.SessionRecord{
		ID:        uuid.New(),
		TokenHash: util.LookupID(token),
		Secret:    *sealed,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Active:    true,
	}
	if err := s.store.PutSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return &SessionInfo{ID: rec.ID, Token: token, ExpiresAt: rec.ExpiresAt}, nil
}

// lookup returns the usable session for token or ErrInvalidSession.
func (s *sessionVault) lookup(ctx context.Context, token string) (*storage.SessionRecord, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	rec, err := s.store.GetSession(ctx, util.LookupID(token))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if !rec.Usable(s.now()) {
		return nil, ErrInvalidSession
	}
	return rec, nil
}

func (s *sessionVault) verify(ctx context.Context, token string) (bool, error) {
	_, err := s.lookup(ctx, token)
	if errors.Is(err, ErrInvalidSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// recoverSecret opens the session's sealed copy of the master secret. The
// caller must Destroy the returned buffer.
func (s *sessionVault) recoverSecret(ctx context.Context, token string) (*memguard.LockedBuffer, error) {
	rec, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	plaintext, err := crypto.Open(&rec.Secret, []byte(token), crypto.PurposeSession)
	if err != nil {
		return nil, fmt.Errorf("recovering session secret: %w", err)
	}
	// NewBufferFromBytes wipes plaintext.
	return memguard.NewBufferFromBytes(plaintext), nil
}

func (s *sessionVault) invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := s.store.DeactivateSession(ctx, util.LookupID(token))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func (s *sessionVault) sweepExpired(ctx context.Context) (int, error) {
	return s.store.DeleteExpiredSessions(ctx, s.now())
}
