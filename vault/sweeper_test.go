package vault

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/ironshare/storage/memory"
)

var errBrokenStore = errors.New("store unavailable")

// flakySweepRepo fails every session sweep and counts entry purges.
type flakySweepRepo struct {
	*memory.Repository
	purges atomic.Int32
}

func (r *flakySweepRepo) DeleteExpiredSessions(context.Context, time.Time) (int, error) {
	return 0, errBrokenStore
}

func (r *flakySweepRepo) DeleteExpiredEntries(ctx context.Context, now time.Time) (int, error) {
	r.purges.Add(1)
	return r.Repository.DeleteExpiredEntries(ctx, now)
}

func TestSweeper_SweepOnce(t *testing.T) {
	ctx := t.Context()
	repo := memory.NewRepository()
	clock := newFakeClock()
	v := New(repo, WithClock(clock.Now), WithLogger(discardLogger()), WithEntryTTL(time.Hour))
	require.NoError(t, v.ConfigureMasterSecret(ctx, testSecret))
	sess, err := v.Login(ctx, testSecret)
	require.NoError(t, err)
	_, err = v.CreateEntry(ctx, sess.Token, mailEntry())
	require.NoError(t, err)

	s := v.NewSweeper(time.Minute)
	assert.Equal(t, SweepResult{}, s.SweepOnce(ctx))

	clock.Advance(time.Hour)
	assert.Equal(t, SweepResult{Entries: 1}, s.SweepOnce(ctx))

	clock.Advance(DefaultSessionTTL)
	assert.Equal(t, SweepResult{Sessions: 1}, s.SweepOnce(ctx))
}

func TestSweeper_LogsAndContinues(t *testing.T) {
	var logs bytes.Buffer
	repo := &flakySweepRepo{Repository: memory.NewRepository()}
	v := New(repo, WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))))

	s := v.NewSweeper(10 * time.Millisecond)
	res := s.SweepOnce(t.Context())
	assert.Zero(t, res.Sessions)
	assert.Equal(t, int32(1), repo.purges.Load(), "entry purge runs even when the session sweep fails")
	assert.Contains(t, logs.String(), "session sweep failed")
	assert.Contains(t, logs.String(), `"component":"sweeper"`)

	s.Start(t.Context())
	assert.Eventually(t, func() bool { return repo.purges.Load() >= 4 }, 2*time.Second, 5*time.Millisecond,
		"ticker keeps running after failures")
	s.Stop()

	stopped := repo.purges.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, repo.purges.Load(), "no sweeps after Stop")

	// Stop on a stopped sweeper is a no-op.
	s.Stop()
}

func TestSweeper_RunReturnsOnCancel(t *testing.T) {
	v := New(memory.NewRepository(), WithLogger(discardLogger()))
	s := v.NewSweeper(0)
	assert.Equal(t, DefaultSweepInterval, s.interval)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
