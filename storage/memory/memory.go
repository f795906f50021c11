// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jmcleod/ironshare/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu       sync.RWMutex
	master   *storage.MasterSecretRecord
	sessions map[string]*storage.SessionRecord
	entries  map[string]*storage.EntryRecord
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{
		sessions: make(map[string]*storage.SessionRecord),
		entries:  make(map[string]*storage.EntryRecord),
	}
}

func (r *Repository) Close() error {
	return nil
}

func (r *Repository) CreateMasterSecret(ctx context.Context, rec *storage.MasterSecretRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.master != nil {
		return storage.ErrAlreadyExists
	}
	r.master = rec.Clone()
	return nil
}

func (r *Repository) GetMasterSecret(ctx context.Context) (*storage.MasterSecretRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.master == nil {
		return nil, storage.ErrNotFound
	}
	return r.master.Clone(), nil
}

func (r *Repository) PutSession(ctx context.Context, rec *storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[rec.TokenHash]; ok {
		return storage.ErrAlreadyExists
	}
	r.sessions[rec.TokenHash] = rec.Clone()
	return nil
}

func (r *Repository) GetSession(ctx context.Context, tokenHash string) (*storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *Repository) DeactivateSession(ctx context.Context, tokenHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[tokenHash]
	if !ok {
		return storage.ErrNotFound
	}
	s.Active = false
	return nil
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, k)
			n++
		}
	}
	return n, nil
}

func (r *Repository) PutEntry(ctx context.Context, rec *storage.EntryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[rec.ID]; ok {
		return storage.ErrAlreadyExists
	}
	r.entries[rec.ID] = rec.Clone()
	return nil
}

func (r *Repository) ListActiveEntries(ctx context.Context, now time.Time) ([]*storage.EntryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*storage.EntryRecord
	for _, e := range r.entries {
		if e.Visible(now) {
			out = append(out, e.Clone())
		}
	}
	storage.SortNewestFirst(out)
	return out, nil
}

func (r *Repository) SoftDeleteEntries(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Visible(now) {
			e.Deleted = true
			n++
		}
	}
	return n, nil
}

func (r *Repository) DeleteExpiredEntries(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.entries {
		if e.Expired(now) {
			delete(r.entries, k)
			n++
		}
	}
	return n, nil
}
