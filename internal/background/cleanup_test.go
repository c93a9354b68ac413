package background

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marchalgreen/Rundeklar-sub004/internal/clock"
	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
)

func insertAt(t *testing.T, store *ratelimit.MemoryStore, at time.Time) {
	t.Helper()
	attempt := models.LoginAttempt{
		AccountID: "medlem@klub.dk",
		Success:   false,
		CreatedAt: at,
	}
	require.NoError(t, store.Insert(context.Background(), &attempt))
}

func TestCleanupManager_SweepsExpiredAttempts(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	now := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	retention := 7 * 24 * time.Hour
	insertAt(t, store, now.Add(-retention-time.Hour))
	insertAt(t, store, now.Add(-retention+time.Hour))
	insertAt(t, store, now)

	cm := NewCleanupManager(store, clk, logger, 10*time.Millisecond, retention)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		cm.Start(ctx)
	}()

	// The startup sweep removes the attempt past the horizon.
	require.Eventually(t, func() bool {
		return store.Len() == 2
	}, time.Second, 5*time.Millisecond)

	// Advancing the clock moves the horizon past another attempt, and
	// the next tick picks it up.
	clk.Advance(2 * time.Hour)
	require.Eventually(t, func() bool {
		return store.Len() == 1
	}, time.Second, 5*time.Millisecond)

	cm.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	store := ratelimit.NewMemoryStore()
	clk := clock.NewFake(time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cm := NewCleanupManager(store, clk, logger, time.Hour, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cm.Start(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager ignored context cancellation")
	}

	assert.Zero(t, store.Len())
}
