package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/jmcleod/ironshare/storage"
	"github.com/jmcleod/ironshare/storage/bbolt"
	"github.com/jmcleod/ironshare/storage/memory"
	"github.com/jmcleod/ironshare/storage/postgres"
	"github.com/jmcleod/ironshare/vault"
)

const (
	storageBolt     = "bbolt"
	storagePostgres = "postgres"
	storageMemory   = "memory"

	boltFileName = "ironshare.db"
)

// storageConfig is shared by every command that opens the vault.
type storageConfig struct {
	Storage     string
	DataDir     string
	PostgresDSN string
	SessionTTL  time.Duration
	EntryTTL    time.Duration
	LogLevel    string
}

var (
	storageCfg storageConfig
	// envErrs collects malformed IRONSHARE_* values so validation can
	// report them instead of silently using the default.
	envErrs []error
)

func bindStorageFlags(c *cobra.Command) {
	f := c.PersistentFlags()
	f.StringVar(&storageCfg.Storage, "storage", envString("IRONSHARE_STORAGE", storageBolt), "storage backend: bbolt, postgres or memory")
	f.StringVar(&storageCfg.DataDir, "data-dir", envString("IRONSHARE_DATA_DIR", "./data"), "directory for the bbolt database file")
	f.StringVar(&storageCfg.PostgresDSN, "postgres-dsn", envString("IRONSHARE_POSTGRES_DSN", ""), "PostgreSQL connection string")
	f.DurationVar(&storageCfg.SessionTTL, "session-ttl", envDuration("IRONSHARE_SESSION_TTL", vault.DefaultSessionTTL), "lifetime of a login session")
	f.DurationVar(&storageCfg.EntryTTL, "entry-ttl", envDuration("IRONSHARE_ENTRY_TTL", vault.DefaultEntryTTL), "lifetime of a shared entry")
	f.StringVar(&storageCfg.LogLevel, "log-level", envString("IRONSHARE_LOG_LEVEL", "info"), "log level: debug, info, warn or error")
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		envErrs = append(envErrs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		envErrs = append(envErrs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c storageConfig) validate() error {
	var errs []error
	switch c.Storage {
	case storageBolt:
		if c.DataDir == "" {
			errs = append(errs, errors.New("--data-dir is required for bbolt storage"))
		}
	case storagePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("--postgres-dsn is required for postgres storage"))
		}
	case storageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("--session-ttl must be positive"))
	}
	if c.EntryTTL <= 0 {
		errs = append(errs, errors.New("--entry-ttl must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

func newLogger(c storageConfig) *slog.Logger {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openRepository opens the configured backend. The caller owns Close.
func openRepository(ctx context.Context, c storageConfig) (storage.Repository, error) {
	switch c.Storage {
	case storageMemory:
		return memory.NewRepository(), nil
	case storagePostgres:
		repo, err := postgres.NewRepositoryFromDSN(ctx, c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return repo, nil
	case storageBolt:
		if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		repo, err := bbolt.NewRepositoryFromFile(filepath.Join(c.DataDir, boltFileName), &bolt.Options{Timeout: 5 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("opening bbolt: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Storage)
	}
}

// openVault validates the shared flags and builds a vault over the
// configured repository.
func openVault(ctx context.Context, logger *slog.Logger) (*vault.Vault, storage.Repository, error) {
	if err := errors.Join(append(envErrs, storageCfg.validate())...); err != nil {
		return nil, nil, err
	}
	repo, err := openRepository(ctx, storageCfg)
	if err != nil {
		return nil, nil, err
	}
	v := vault.New(repo,
		vault.WithSessionTTL(storageCfg.SessionTTL),
		vault.WithEntryTTL(storageCfg.EntryTTL),
		vault.WithLogger(logger),
	)
	return v, repo, nil
}
