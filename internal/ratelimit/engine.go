// Package ratelimit implements the sign-in rate limiter and lockout
// controller: coordinated per-account and per-address failure limits
// over a rolling window, progressive lockouts for repeat episodes, and
// privacy-preserving attempt retention.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/marchalgreen/Rundeklar-sub004/internal/clock"
	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
)

// Denial reasons carried on a blocking Decision.
const (
	ReasonAccount     = "account"
	ReasonAddress     = "address"
	ReasonProgressive = "progressive"
)

// episodeLookback bounds how far back prior lockout episodes are
// considered when sizing a progressive lockout.
const episodeLookback = 24 * time.Hour

// ErrEmptyAccountID reports a caller contract violation: Check and
// Record require a non-empty, case-normalized account identifier.
var ErrEmptyAccountID = errors.New("ratelimit: empty account identifier")

// Decision is the outcome of a Check. Denial is expressed as a value,
// never as an error.
type Decision struct {
	Allowed     bool
	Remaining   int       // attempts left before lockout; informational when allowed
	LockedUntil time.Time // set only for account-based denials
	Reason      string    // set only when denied
}

// Engine answers "may this login proceed?" and records login outcomes.
// It holds no cross-request state; all coordination goes through the
// AttemptStore, so concurrent Checks against a shared store are safe.
type Engine struct {
	store  AttemptStore
	clock  clock.Clock
	config Config
	logger *slog.Logger
}

// NewEngine wires the engine to its store, clock, and validated config.
// The logger is used only for best-effort purge warnings; the decision
// path itself never logs.
func NewEngine(store AttemptStore, clk clock.Clock, config Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		clock:  clk,
		config: config,
		logger: logger,
	}
}

// Check decides whether a login attempt for accountID from rawAddress
// may proceed. The address gate runs first when the anonymized address
// is known; the account gate then counts window failures and, at the
// threshold, derives the lockout deadline from prior episodes. Store
// errors propagate: the engine never falls back to "allow".
func (e *Engine) Check(ctx context.Context, accountID, rawAddress string) (Decision, error) {
	if accountID == "" {
		return Decision{}, ErrEmptyAccountID
	}

	// One clock read per invocation keeps the address and account
	// windows anchored at the same instant.
	now := e.clock.Now()
	windowStart := now.Add(-e.config.Window)

	if address := AnonymizeAddress(rawAddress); address != "" {
		count, err := e.store.CountFailuresByAddress(ctx, address, windowStart)
		if err != nil {
			return Decision{}, fmt.Errorf("counting address failures: %w", err)
		}
		if count >= e.config.MaxAttemptsPerAddress {
			return Decision{Allowed: false, Remaining: 0, Reason: ReasonAddress}, nil
		}
	}

	recent, err := e.store.ListRecentByAccount(ctx, accountID, windowStart, 2*e.config.MaxAttemptsPerAccount)
	if err != nil {
		return Decision{}, fmt.Errorf("listing account attempts: %w", err)
	}

	failures := 0
	var oldestFailure time.Time
	for _, attempt := range recent {
		if !attempt.Success {
			failures++
			// recent is newest first, so the last failure seen is the
			// oldest in the window: the anchor for locked-until.
			oldestFailure = attempt.CreatedAt
		}
	}
	if failures < e.config.MaxAttemptsPerAccount {
		return Decision{Allowed: true, Remaining: e.config.MaxAttemptsPerAccount - failures}, nil
	}

	history, err := e.store.ListByAccountSince(ctx, accountID, now.Add(-episodeLookback))
	if err != nil {
		return Decision{}, fmt.Errorf("listing episode history: %w", err)
	}
	episodes := CountEpisodes(history, e.config.MaxAttemptsPerAccount)

	lockedUntil := oldestFailure.Add(e.config.LockoutDuration(episodes + 1))
	if now.Before(lockedUntil) {
		reason := ReasonAccount
		if episodes > 0 {
			reason = ReasonProgressive
		}
		return Decision{Allowed: false, Remaining: 0, LockedUntil: lockedUntil, Reason: reason}, nil
	}

	// The lockout has elapsed; the next failure starts a fresh episode.
	return Decision{Allowed: true, Remaining: 0}, nil
}

// Record persists the outcome of a login attempt and prunes records
// past the retention horizon. Insert failure is fatal to the caller;
// purge failure is not and is logged at warning level.
func (e *Engine) Record(ctx context.Context, accountID string, tenantID *string, rawAddress string, success bool) error {
	if accountID == "" {
		return ErrEmptyAccountID
	}

	now := e.clock.Now()
	attempt := &models.LoginAttempt{
		TenantID:  tenantID,
		AccountID: accountID,
		Success:   success,
		CreatedAt: now,
	}
	if address := AnonymizeAddress(rawAddress); address != "" {
		attempt.Address = &address
	}

	if err := e.store.Insert(ctx, attempt); err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}

	if _, err := e.store.PurgeOlderThan(ctx, now.Add(-e.config.Retention)); err != nil {
		e.logger.Warn("attempt purge failed", slog.Any("error", err))
	}
	return nil
}
