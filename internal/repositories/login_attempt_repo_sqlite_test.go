package repositories_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marchalgreen/Rundeklar-sub004/internal/clock"
	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
	"github.com/marchalgreen/Rundeklar-sub004/internal/repositories"
)

func newSQLiteStore(t *testing.T) *repositories.SQLiteLoginAttemptStore {
	t.Helper()

	store, err := repositories.NewSQLiteLoginAttemptStore(filepath.Join(t.TempDir(), "attempts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sqliteInsert(t *testing.T, store *repositories.SQLiteLoginAttemptStore, accountID string, address *string, success bool, at time.Time) models.LoginAttempt {
	t.Helper()

	attempt := models.LoginAttempt{
		AccountID: accountID,
		Address:   address,
		Success:   success,
		CreatedAt: at,
	}
	require.NoError(t, store.Insert(context.Background(), &attempt))
	return attempt
}

func TestSQLiteStore_InsertRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	club := "club-12"
	addr := "203.0.113.0"

	attempt := models.LoginAttempt{
		TenantID:  &club,
		AccountID: "kasserer@klub.dk",
		Address:   &addr,
		Success:   false,
		CreatedAt: base,
	}
	require.NoError(t, store.Insert(ctx, &attempt))
	assert.Equal(t, int64(1), attempt.ID)

	second := sqliteInsert(t, store, "kasserer@klub.dk", nil, true, base.Add(time.Second))
	assert.Equal(t, int64(2), second.ID)

	got, err := store.ListByAccountSince(ctx, "kasserer@klub.dk", base)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].TenantID)
	assert.Equal(t, "club-12", *got[0].TenantID)
	require.NotNil(t, got[0].Address)
	assert.Equal(t, addr, *got[0].Address)
	assert.False(t, got[0].Success)
	assert.True(t, got[0].CreatedAt.Equal(base))

	assert.Nil(t, got[1].TenantID)
	assert.Nil(t, got[1].Address)
	assert.True(t, got[1].Success)
}

func TestSQLiteStore_ListRecentByAccount(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	first := sqliteInsert(t, store, "medlem@klub.dk", nil, false, base)
	second := sqliteInsert(t, store, "medlem@klub.dk", nil, true, base.Add(time.Second))
	third := sqliteInsert(t, store, "medlem@klub.dk", nil, false, base.Add(2*time.Second))
	sqliteInsert(t, store, "anden@klub.dk", nil, false, base.Add(3*time.Second))

	got, err := store.ListRecentByAccount(ctx, "medlem@klub.dk", base, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, []int64{got[0].ID, got[1].ID, got[2].ID})

	limited, err := store.ListRecentByAccount(ctx, "medlem@klub.dk", base, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, third.ID, limited[0].ID)
	assert.Equal(t, second.ID, limited[1].ID)

	later, err := store.ListRecentByAccount(ctx, "medlem@klub.dk", base.Add(time.Second), 0)
	require.NoError(t, err)
	require.Len(t, later, 2)
}

func TestSQLiteStore_SameInstantTieBreaksByID(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	older := sqliteInsert(t, store, "medlem@klub.dk", nil, false, base)
	newer := sqliteInsert(t, store, "medlem@klub.dk", nil, false, base)

	got, err := store.ListRecentByAccount(ctx, "medlem@klub.dk", base, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	asc, err := store.ListByAccountSince(ctx, "medlem@klub.dk", base)
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, older.ID, asc[0].ID)
}

func TestSQLiteStore_CountFailuresByAddress(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	addr := "198.51.100.0"
	other := "203.0.113.0"

	sqliteInsert(t, store, "a@klub.dk", &addr, false, base)
	sqliteInsert(t, store, "b@klub.dk", &addr, false, base.Add(time.Second))
	sqliteInsert(t, store, "c@klub.dk", &addr, true, base.Add(2*time.Second))
	sqliteInsert(t, store, "d@klub.dk", &other, false, base.Add(3*time.Second))
	sqliteInsert(t, store, "e@klub.dk", nil, false, base.Add(4*time.Second))
	sqliteInsert(t, store, "f@klub.dk", &addr, false, base.Add(-time.Hour))

	count, err := store.CountFailuresByAddress(ctx, addr, base)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	none, err := store.CountFailuresByAddress(ctx, "192.0.2.0", base)
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestSQLiteStore_PurgeOlderThan(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	cutoff := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	sqliteInsert(t, store, "medlem@klub.dk", nil, false, cutoff.Add(-2*time.Hour))
	sqliteInsert(t, store, "medlem@klub.dk", nil, false, cutoff.Add(-time.Hour))
	boundary := sqliteInsert(t, store, "medlem@klub.dk", nil, false, cutoff)
	kept := sqliteInsert(t, store, "medlem@klub.dk", nil, false, cutoff.Add(time.Hour))

	deleted, err := store.PurgeOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := store.ListByAccountSince(ctx, "medlem@klub.dk", cutoff.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, boundary.ID, remaining[0].ID)
	assert.Equal(t, kept.ID, remaining[1].ID)

	again, err := store.PurgeOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attempts.db")
	ctx := context.Background()

	store, err := repositories.NewSQLiteLoginAttemptStore(path)
	require.NoError(t, err)

	base := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	sqliteInsert(t, store, "medlem@klub.dk", nil, false, base)
	require.NoError(t, store.Close())

	reopened, err := repositories.NewSQLiteLoginAttemptStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.ListByAccountSince(ctx, "medlem@klub.dk", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// The engine must behave identically over the embedded store.
func TestSQLiteStore_DrivesEngineLockout(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	start := time.Date(2025, 5, 12, 9, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)
	cfg := ratelimit.DefaultConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := ratelimit.NewEngine(store, clk, cfg, logger)

	for i := 0; i < cfg.MaxAttemptsPerAccount; i++ {
		decision, err := engine.Check(ctx, "formand@klub.dk", "192.0.2.10")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.NoError(t, engine.Record(ctx, "formand@klub.dk", nil, "192.0.2.10", false))
		clk.Advance(time.Second)
	}

	decision, err := engine.Check(ctx, "formand@klub.dk", "192.0.2.10")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ratelimit.ReasonAccount, decision.Reason)
	assert.True(t, decision.LockedUntil.Equal(start.Add(cfg.InitialLockout)))

	attempts, err := store.ListByAccountSince(ctx, "formand@klub.dk", start.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, attempts, cfg.MaxAttemptsPerAccount)
	for _, attempt := range attempts {
		require.NotNil(t, attempt.Address)
		assert.Equal(t, "192.0.2.0", *attempt.Address)
	}
}
