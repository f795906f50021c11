// Package bbolt provides a BBolt-backed storage repository.
//
// Records are JSON documents in three buckets. Sessions are keyed by token
// hash, entries by ID, and the master secret by a fixed key so the bucket can
// hold at most one record.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/ironshare/storage"
)

var (
	masterBucket   = []byte("master_secret")
	sessionsBucket = []byte("sessions")
	entriesBucket  = []byte("entries")

	masterKey = []byte("current")
)

// Store implements storage.Repository backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) update(ctx context.Context, bucket []byte, fn func(b *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return fn(b)
	})
}

// view runs fn with the named bucket; fn is not called if the bucket has
// never been written.
func (s *Store) view(ctx context.Context, bucket []byte, fn func(b *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return fn(b)
	})
}

func (s *Store) CreateMasterSecret(ctx context.Context, rec *storage.MasterSecretRecord) error {
	return s.update(ctx, masterBucket, func(b *bbolt.Bucket) error {
		if b.Get(masterKey) != nil {
			return storage.ErrAlreadyExists
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(masterKey, data)
	})
}

func (s *Store) GetMasterSecret(ctx context.Context) (*storage.MasterSecretRecord, error) {
	var rec *storage.MasterSecretRecord
	err := s.view(ctx, masterBucket, func(b *bbolt.Bucket) error {
		data := b.Get(masterKey)
		if data == nil {
			return nil
		}
		rec = &storage.MasterSecretRecord{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) PutSession(ctx context.Context, rec *storage.SessionRecord) error {
	return s.update(ctx, sessionsBucket, func(b *bbolt.Bucket) error {
		key := []byte(rec.TokenHash)
		if b.Get(key) != nil {
			return storage.ErrAlreadyExists
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *Store) GetSession(ctx context.Context, tokenHash string) (*storage.SessionRecord, error) {
	var rec *storage.SessionRecord
	err := s.view(ctx, sessionsBucket, func(b *bbolt.Bucket) error {
		data := b.Get([]byte(tokenHash))
		if data == nil {
			return nil
		}
		rec = &storage.SessionRecord{}
		return json.Unmarshal(data, rec)
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) DeactivateSession(ctx context.Context, tokenHash string) error {
	return s.update(ctx, sessionsBucket, func(b *bbolt.Bucket) error {
		key := []byte(tokenHash)
		data := b.Get(key)
		if data == nil {
			return fmt.Errorf("session: %w", storage.ErrNotFound)
		}
		var rec storage.SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if !rec.Active {
			return nil
		}
		rec.Active = false
		updated, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

// expiryOnly decodes just the fields the sweeps filter on.
type expiryOnly struct {
	ExpiresAt time.Time `json:"expires_at"`
	Deleted   bool      `json:"deleted"`
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	return s.deleteExpired(ctx, sessionsBucket, now)
}

func (s *Store) deleteExpired(ctx context.Context, bucket []byte, now time.Time) (int, error) {
	n := 0
	err := s.update(ctx, bucket, func(b *bbolt.Bucket) error {
		var doomed [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec expiryOnly
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding %s/%s: %w", bucket, k, err)
			}
			if !rec.ExpiresAt.After(now) {
				// Keys are only valid for the life of the transaction and
				// must not be deleted while iterating.
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(doomed)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) PutEntry(ctx context.Context, rec *storage.EntryRecord) error {
	return s.update(ctx, entriesBucket, func(b *bbolt.Bucket) error {
		key := []byte(rec.ID)
		if b.Get(key) != nil {
			return storage.ErrAlreadyExists
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *Store) ListActiveEntries(ctx context.Context, now time.Time) ([]*storage.EntryRecord, error) {
	var out []*storage.EntryRecord
	err := s.view(ctx, entriesBucket, func(b *bbolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			var rec storage.EntryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding entry %s: %w", k, err)
			}
			if rec.Visible(now) {
				out = append(out, &rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	storage.SortNewestFirst(out)
	return out, nil
}

func (s *Store) SoftDeleteEntries(ctx context.Context, now time.Time) (int, error) {
	n := 0
	err := s.update(ctx, entriesBucket, func(b *bbolt.Bucket) error {
		updates := make(map[string][]byte)
		err := b.ForEach(func(k, v []byte) error {
			var rec storage.EntryRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding entry %s: %w", k, err)
			}
			if !rec.Visible(now) {
				return nil
			}
			rec.Deleted = true
			data, err := json.Marshal(&rec)
			if err != nil {
				return err
			}
			updates[string(k)] = data
			return nil
		})
		if err != nil {
			return err
		}
		for k, data := range updates {
			if err := b.Put([]byte(k), data); err != nil {
				return err
			}
		}
		n = len(updates)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) DeleteExpiredEntries(ctx context.Context, now time.Time) (int, error) {
	return s.deleteExpired(ctx, entriesBucket, now)
}
