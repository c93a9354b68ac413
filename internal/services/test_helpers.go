package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/marchalgreen/Rundeklar-sub004/internal/auth"
	"github.com/marchalgreen/Rundeklar-sub004/internal/clock"
	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
	pkglogger "github.com/marchalgreen/Rundeklar-sub004/pkg/logger"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc func(ctx context.Context, email string) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

// MockEmailService records lockout alerts instead of sending them
type MockEmailService struct {
	mu    sync.Mutex
	sent  []SentAlert
	Error error
}

type SentAlert struct {
	Email       string
	LockedUntil time.Time
}

func (m *MockEmailService) SendLockoutAlert(ctx context.Context, email string, lockedUntil time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Error != nil {
		return m.Error
	}
	m.sent = append(m.sent, SentAlert{Email: email, LockedUntil: lockedUntil})
	return nil
}

func (m *MockEmailService) Sent() []SentAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentAlert, len(m.sent))
	copy(out, m.sent)
	return out
}

// discardLogger silences service logging in tests
func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-key-0123456789", time.Hour)
}

// newInstantTiming disables the failure-path delay so tests stay fast
func newInstantTiming() *auth.TimingDelay {
	return auth.NewTimingDelay(auth.TimingConfig{})
}

func clockAt(t time.Time) *clock.Fake {
	return clock.NewFake(t)
}

func newTestAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}

// authServiceFixture wires an AuthService to an in-memory attempt store
// and a fake clock so lockout scenarios can be driven deterministically.
type authServiceFixture struct {
	service *AuthService
	store   *ratelimit.MemoryStore
	clk     *clock.Fake
	email   *MockEmailService
	users   *MockUserRepository
}

func newAuthServiceFixture(start time.Time, cfg ratelimit.Config) *authServiceFixture {
	logger := discardLogger()
	store := ratelimit.NewMemoryStore()
	clk := clock.NewFake(start)
	engine := ratelimit.NewEngine(store, clk, cfg, logger)
	email := &MockEmailService{}
	users := &MockUserRepository{}

	svc := NewAuthService(
		users,
		engine,
		clk,
		newTestTokenManager(),
		newInstantTiming(),
		email,
		cfg,
		logger,
		pkglogger.NewAuditLogger(logger),
	)

	return &authServiceFixture{
		service: svc,
		store:   store,
		clk:     clk,
		email:   email,
		users:   users,
	}
}
