// Package postgres implements storage.Repository backed by PostgreSQL.
//
// Envelope fields are stored as individual BYTEA columns. The schema is
// managed by goose migrations embedded in the package; see Migrate.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/ironshare/storage"
)

const uniqueViolation = "23505"

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, applies
// migrations, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewRepository(pool), nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *Store) CreateMasterSecret(ctx context.Context, rec *storage.MasterSecretRecord) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO master_secret (id, hashed_secret, salt, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		rec.ID, rec.HashedSecret, rec.Salt, rec.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetMasterSecret(ctx context.Context) (*storage.MasterSecretRecord, error) {
	var rec storage.MasterSecretRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, hashed_secret, salt, created_at FROM master_secret LIMIT 1`).Scan(
		&rec.ID, &rec.HashedSecret, &rec.Salt, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) PutSession(ctx context.Context, rec *storage.SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, token_hash, secret_ver, secret_ciphertext, secret_salt,
		                       secret_iv, secret_tag, created_at, expires_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.TokenHash,
		rec.Secret.Ver, rec.Secret.Ciphertext, rec.Secret.Salt, rec.Secret.IV, rec.Secret.Tag,
		rec.CreatedAt, rec.ExpiresAt, rec.Active)
	if isUniqueViolation(err) {
		return storage.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetSession(ctx context.Context, tokenHash string) (*storage.SessionRecord, error) {
	var rec storage.SessionRecord
	err := s.pool.QueryRow(ctx,
		`SELECT id, token_hash, secret_ver, secret_ciphertext, secret_salt, secret_iv,
		        secret_tag, created_at, expires_at, active
		 FROM sessions WHERE token_hash = $1`, tokenHash).Scan(
		&rec.ID, &rec.TokenHash,
		&rec.Secret.Ver, &rec.Secret.Ciphertext, &rec.Secret.Salt, &rec.Secret.IV, &rec.Secret.Tag,
		&rec.CreatedAt, &rec.ExpiresAt, &rec.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) DeactivateSession(ctx context.Context, tokenHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET active = FALSE WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) PutEntry(ctx context.Context, rec *storage.EntryRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entries (id, ver, ciphertext, salt, iv, tag, created_at, expires_at, deleted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID,
		rec.Envelope.Ver, rec.Envelope.Ciphertext, rec.Envelope.Salt, rec.Envelope.IV, rec.Envelope.Tag,
		rec.CreatedAt, rec.ExpiresAt, rec.Deleted)
	if isUniqueViolation(err) {
		return storage.ErrAlreadyExists
	}
	return err
}

func (s *Store) ListActiveEntries(ctx context.Context, now time.Time) ([]*storage.EntryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ver, ciphertext, salt, iv, tag, created_at, expires_at, deleted
		 FROM entries
		 WHERE NOT deleted AND expires_at > $1
		 ORDER BY created_at DESC, id DESC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.EntryRecord
	for rows.Next() {
		var rec storage.EntryRecord
		if err := rows.Scan(&rec.ID,
			&rec.Envelope.Ver, &rec.Envelope.Ciphertext, &rec.Envelope.Salt, &rec.Envelope.IV, &rec.Envelope.Tag,
			&rec.CreatedAt, &rec.ExpiresAt, &rec.Deleted); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (s *Store) SoftDeleteEntries(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE entries SET deleted = TRUE WHERE NOT deleted AND expires_at > $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) DeleteExpiredEntries(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM entries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
