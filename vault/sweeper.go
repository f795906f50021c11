package vault

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is the period between sweeps when none is given.
const DefaultSweepInterval = time.Hour

// Sweeper periodically removes expired sessions and entries. Failures are
// logged and the schedule continues.
type Sweeper struct {
	vault    *Vault
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper returns a Sweeper for v. A non-positive interval selects
// DefaultSweepInterval.
func (v *Vault) NewSweeper(interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		vault:    v,
		interval: interval,
		logger:   v.logger.With(slog.String("component", "sweeper")),
	}
}

// SweepResult reports what a single sweep removed.
type SweepResult struct {
	Sessions int
	Entries  int
}

// SweepOnce runs both sweeps once. Errors are logged, not returned, and one
// failing sweep does not prevent the other.
func (s *Sweeper) SweepOnce(ctx context.Context) SweepResult {
	var res SweepResult
	var err error

	res.Sessions, err = s.vault.SweepExpiredSessions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "session sweep failed", slog.String("error", err.Error()))
	}
	res.Entries, err = s.vault.PurgeExpiredEntries(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "entry purge failed", slog.String("error", err.Error()))
	}

	if res.Sessions > 0 || res.Entries > 0 {
		s.logger.InfoContext(ctx, "sweep completed",
			slog.Int("sessions_removed", res.Sessions),
			slog.Int("entries_removed", res.Entries),
		)
	}
	return res
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// Start runs the sweeper in a background goroutine. Calling Start on a
// running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		s.Run(ctx)
	}(s.done)
}

// Stop halts a started sweeper and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
