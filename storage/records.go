package storage

import (
	"sort"
	"time"

	"github.com/jmcleod/ironshare/crypto"
	"github.com/jmcleod/ironshare/internal/util"
)

// MasterSecretRecord holds the one-way hash of the master secret.
type MasterSecretRecord struct {
	ID           string    `json:"id"`
	HashedSecret []byte    `json:"hashed_secret"`
	Salt         []byte    `json:"salt"`
	CreatedAt    time.Time `json:"created_at"`
}

// Clone returns a deep copy of the record.
func (r *MasterSecretRecord) Clone() *MasterSecretRecord {
	if r == nil {
		return nil
	}
	return &MasterSecretRecord{
		ID:           r.ID,
		HashedSecret: util.CopyBytes(r.HashedSecret),
		Salt:         util.CopyBytes(r.Salt),
		CreatedAt:    r.CreatedAt,
	}
}

// SessionRecord is a time-bounded session. Secret holds the master secret
// sealed under a key derived from the session token and Secret.Salt. The
// token itself is never stored; TokenHash is its lookup ID.
type SessionRecord struct {
	ID        string          `json:"id"`
	TokenHash string          `json:"token_hash"`
	Secret    crypto.Envelope `json:"secret"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Active    bool            `json:"active"`
}

// Usable reports whether the session is active and unexpired at now.
func (r *SessionRecord) Usable(now time.Time) bool {
	return r.Active && r.ExpiresAt.After(now)
}

// Clone returns a deep copy of the record.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Secret = *r.Secret.Clone()
	return &cp
}

// EntryRecord is an encrypted entry. Expiry and soft deletion are
// independent: Deleted hides the entry from listings, ExpiresAt governs when
// the sweep removes it.
type EntryRecord struct {
	ID        string          `json:"id"`
	Envelope  crypto.Envelope `json:"envelope"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Deleted   bool            `json:"deleted"`
}

// Expired reports whether the entry has reached its expiry at now.
func (r *EntryRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Visible reports whether the entry should appear in listings at now.
func (r *EntryRecord) Visible(now time.Time) bool {
	return !r.Deleted && !r.Expired(now)
}

// Clone returns a deep copy of the record.
func (r *EntryRecord) Clone() *EntryRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Envelope = *r.Envelope.Clone()
	return &cp
}

// SortNewestFirst orders entries by CreatedAt descending, breaking ties by ID
// so listings are stable across backends.
func SortNewestFirst(entries []*EntryRecord) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}
