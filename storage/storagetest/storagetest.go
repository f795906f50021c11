// Package storagetest provides a behavioural test suite shared by every
// storage.Repository backend.
package storagetest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironshare/crypto"
	"github.com/jmcleod/ironshare/storage"
)

// Factory returns a fresh, empty repository. Cleanup is the factory's
// responsibility (t.Cleanup).
type Factory func(t *testing.T) storage.Repository

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func envelope(tag byte) crypto.Envelope {
	fill := func(n int) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = tag
		}
		return b
	}
	return crypto.Envelope{
		Ver:        crypto.EnvelopeVersion,
		Ciphertext: fill(24),
		Salt:       fill(crypto.SaltSize),
		IV:         fill(12),
		Tag:        fill(16),
	}
}

// NewEntry builds an entry record created at created with the given lifetime.
func NewEntry(id string, created time.Time, ttl time.Duration) *storage.EntryRecord {
	return &storage.EntryRecord{
		ID:        id,
		Envelope:  envelope(byte(len(id))),
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	}
}

// NewSession builds an active session record.
func NewSession(id, tokenHash string, created time.Time, ttl time.Duration) *storage.SessionRecord {
	return &storage.SessionRecord{
		ID:        id,
		TokenHash: tokenHash,
		Secret:    envelope(0x5a),
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
		Active:    true,
	}
}

// Run executes the full suite against repositories produced by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Run("MasterSecret", func(t *testing.T) { testMasterSecret(t, newRepo(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newRepo(t)) })
	t.Run("SessionSweep", func(t *testing.T) { testSessionSweep(t, newRepo(t)) })
	t.Run("Entries", func(t *testing.T) { testEntries(t, newRepo(t)) })
	t.Run("EntrySoftDelete", func(t *testing.T) { testEntrySoftDelete(t, newRepo(t)) })
	t.Run("EntryPurge", func(t *testing.T) { testEntryPurge(t, newRepo(t)) })
	t.Run("ConcurrentMasterSecret", func(t *testing.T) { testConcurrentMasterSecret(t, newRepo(t)) })
}

func testMasterSecret(t *testing.T, repo storage.Repository) {
	ctx := t.Context()

	_, err := repo.GetMasterSecret(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)

	rec := &storage.MasterSecretRecord{
		ID:           "m1",
		HashedSecret: []byte("$2a$12$hash"),
		Salt:         []byte("salt"),
		CreatedAt:    base,
	}
	require.NoError(t, repo.CreateMasterSecret(ctx, rec))

	got, err := repo.GetMasterSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, rec.HashedSecret, got.HashedSecret)
	assert.Equal(t, rec.Salt, got.Salt)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	// A second record is rejected even with a different ID.
	err = repo.CreateMasterSecret(ctx, &storage.MasterSecretRecord{
		ID:           "m2",
		HashedSecret: []byte("other"),
		Salt:         []byte("other"),
		CreatedAt:    base,
	})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err = repo.GetMasterSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
}

func testSessions(t *testing.T, repo storage.Repository) {
	ctx := t.Context()

	_, err := repo.GetSession(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	s := NewSession("s1", "hash-1", base, 4*time.Hour)
	require.NoError(t, repo.PutSession(ctx, s))

	err = repo.PutSession(ctx, NewSession("s2", "hash-1", base, time.Hour))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err := repo.GetSession(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.True(t, got.Active)
	assert.Equal(t, s.Secret, got.Secret)
	assert.True(t, got.ExpiresAt.Equal(s.ExpiresAt))
	assert.True(t, got.Usable(base))

	// Mutating the returned record must not affect storage.
	got.Active = false
	again, err := repo.GetSession(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, again.Active)

	require.NoError(t, repo.DeactivateSession(ctx, "hash-1"))
	require.NoError(t, repo.DeactivateSession(ctx, "hash-1"))
	got, err = repo.GetSession(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.False(t, got.Usable(base))

	require.ErrorIs(t, repo.DeactivateSession(ctx, "missing"), storage.ErrNotFound)
}

func testSessionSweep(t *testing.T, repo storage.Repository) {
	ctx := t.Context()

	live := NewSession("live", "h-live", base, 4*time.Hour)
	expired := NewSession("expired", "h-expired", base.Add(-5*time.Hour), 4*time.Hour)
	boundary := NewSession("boundary", "h-boundary", base.Add(-4*time.Hour), 4*time.Hour)
	inactiveLive := NewSession("inactive", "h-inactive", base, 4*time.Hour)
	inactiveExpired := NewSession("inactive-expired", "h-inactive-expired", base.Add(-6*time.Hour), 4*time.Hour)
	for _, s := range []*storage.SessionRecord{live, expired, boundary, inactiveLive, inactiveExpired} {
		require.NoError(t, repo.PutSession(ctx, s))
	}
	require.NoError(t, repo.DeactivateSession(ctx, "h-inactive"))
	require.NoError(t, repo.DeactivateSession(ctx, "h-inactive-expired"))

	n, err := repo.DeleteExpiredSessions(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, h := range []string{"h-expired", "h-boundary", "h-inactive-expired"} {
		_, err := repo.GetSession(ctx, h)
		assert.ErrorIs(t, err, storage.ErrNotFound, h)
	}
	for _, h := range []string{"h-live", "h-inactive"} {
		_, err := repo.GetSession(ctx, h)
		assert.NoError(t, err, h)
	}

	n, err = repo.DeleteExpiredSessions(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func testEntries(t *testing.T, repo storage.Repository) {
	ctx := t.Context()

	list, err := repo.ListActiveEntries(ctx, base)
	require.NoError(t, err)
	assert.Empty(t, list)

	old := NewEntry("e-old", base.Add(-2*time.Hour), 24*time.Hour)
	mid := NewEntry("e-mid", base.Add(-time.Hour), 24*time.Hour)
	recent := NewEntry("e-new", base, 24*time.Hour)
	expired := NewEntry("e-expired", base.Add(-25*time.Hour), 24*time.Hour)
	for _, e := range []*storage.EntryRecord{mid, expired, recent, old} {
		require.NoError(t, repo.PutEntry(ctx, e))
	}

	list, err = repo.ListActiveEntries(ctx, base)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "e-new", list[0].ID)
	assert.Equal(t, "e-mid", list[1].ID)
	assert.Equal(t, "e-old", list[2].ID)
	assert.Equal(t, recent.Envelope, list[0].Envelope)
	assert.False(t, list[0].Deleted)
	assert.True(t, list[0].ExpiresAt.Equal(recent.ExpiresAt))
}

func testEntrySoftDelete(t *testing.T, repo storage.Repository) {
	ctx := t.Context()

	for i := range 3 {
		require.NoError(t, repo.PutEntry(ctx, NewEntry(fmt.Sprintf("e%d", i), base.Add(-time.Duration(i)*time.Minute), 24*time.Hour)))
	}
	expired := NewEntry("e-expired", base.Add(-30*time.Hour), 24*time.Hour)
	require.NoError(t, repo.PutEntry(ctx, expired))

	n, err := repo.SoftDeleteEntries(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "expired rows are not touched")

	list, err := repo.ListActiveEntries(ctx, base)
	require.NoError(t, err)
	assert.Empty(t, list)

	n, err = repo.SoftDeleteEntries(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already deleted rows are not touched")

	// Soft-deleted rows remain until they expire.
	n, err = repo.DeleteExpiredEntries(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.DeleteExpiredEntries(ctx, base.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func testEntryPurge(t *testing.T, repo storage.Repository) {
	ctx := t.Context()

	live := NewEntry("live", base, 24*time.Hour)
	expired := NewEntry("expired", base.Add(-25*time.Hour), 24*time.Hour)
	boundary := NewEntry("boundary", base.Add(-24*time.Hour), 24*time.Hour)
	for _, e := range []*storage.EntryRecord{live, expired, boundary} {
		require.NoError(t, repo.PutEntry(ctx, e))
	}

	n, err := repo.DeleteExpiredEntries(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "purge removes rows past expiry even when not soft-deleted")

	list, err := repo.ListActiveEntries(ctx, base)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "live", list[0].ID)
}

func testConcurrentMasterSecret(t *testing.T, repo storage.Repository) {
	ctx := t.Context()

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateMasterSecret(ctx, &storage.MasterSecretRecord{
				ID:           fmt.Sprintf("m%d", i),
				HashedSecret: []byte("hash"),
				Salt:         []byte("salt"),
				CreatedAt:    base,
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			if !errors.Is(err, storage.ErrAlreadyExists) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}
