package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmcleod/ironshare/crypto"
	"github.com/jmcleod/ironshare/internal/uuid"
	"github.com/jmcleod/ironshare/storage"
)

// entryStore seals, lists and expires entries using the secret recovered
// from a session.
type entryStore struct {
	store    storage.EntryStore
	sessions *sessionVault
	now      func() time.Time
	ttl      time.Duration
	logger   *slog.Logger
}

func (e *entryStore) create(ctx context.Context, token string, data EntryData) (*EntryInfo, error) {
	if _, err := e.sessions.lookup(ctx, token); err != nil {
		return nil, err
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	secret, err := e.sessions.recoverSecret(ctx, token)
	if err != nil {
		return nil, err
	}
	defer secret.Destroy()

	sealed, err := crypto.SealJSON(&data, secret.Bytes(), crypto.PurposeEntry)
	if err != nil {
		return nil, err
	}

	now := e.now()
	rec := &storage.EntryRecord{
		ID:        uuid.New(),
		Envelope:  *sealed,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	}
	if err := e.store.PutEntry(ctx, rec); err != nil {
		return nil, fmt.Errorf("storing entry: %w", err)
	}
	return &EntryInfo{ID: rec.ID, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

// listActive decrypts every visible entry, newest first. Entries that fail to
// open are skipped.
func (e *entryStore) listActive(ctx context.Context, token string) ([]Entry, error) {
	secret, err := e.sessions.recoverSecret(ctx, token)
	if err != nil {
		return nil, err
	}
	defer secret.Destroy()

	recs, err := e.store.ListActiveEntries(ctx, e.now())
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	out := make([]Entry, 0, len(recs))
	skipped := 0
	for _, rec := range recs {
		var data EntryData
		err := crypto.OpenJSON(&rec.Envelope, secret.Bytes(), crypto.PurposeEntry, &data)
		if errors.Is(err, crypto.ErrIntegrity) || errors.Is(err, crypto.ErrFormat) {
			skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{
			ID:        rec.ID,
			Title:     data.Title,
			Fields:    data.Fields,
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
		})
	}
	if skipped > 0 {
		e.logger.WarnContext(ctx, "skipped unreadable entries",
			slog.Int("skipped", skipped),
			slog.Int("listed", len(out)),
		)
	}
	return out, nil
}

func (e *entryStore) softDeleteAll(ctx context.Context, token string) (int, error) {
	if _, err := e.sessions.lookup(ctx, token); err != nil {
		return 0, err
	}
	n, err := e.store.SoftDeleteEntries(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("deleting entries: %w", err)
	}
	return n, nil
}

func (e *entryStore) purgeExpired(ctx context.Context) (int, error) {
	return e.store.DeleteExpiredEntries(ctx, e.now())
}
