package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/marchalgreen/Rundeklar-sub004/internal/auth"
	"github.com/marchalgreen/Rundeklar-sub004/internal/clock"
	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
	pkgauth "github.com/marchalgreen/Rundeklar-sub004/pkg/auth"
	pkglogger "github.com/marchalgreen/Rundeklar-sub004/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// RateLimitedError reports a sign-in denial from the rate limiter. It
// carries everything the handler needs to build a 429 response; it is
// not a server fault.
type RateLimitedError struct {
	Reason      string
	LockedUntil time.Time
	RetryAfter  time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Reason)
}

// AuthService handles authentication business logic
type AuthService struct {
	repo        UserRepository
	engine      *ratelimit.Engine
	clk         clock.Clock
	tm          *auth.TokenManager
	timing      *auth.TimingDelay
	email       EmailService
	loginCfg    ratelimit.Config
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. The clock must be the same
// one the engine runs on so retry hints line up with lockout deadlines.
func NewAuthService(
	repo UserRepository,
	engine *ratelimit.Engine,
	clk clock.Clock,
	tm *auth.TokenManager,
	timing *auth.TimingDelay,
	email EmailService,
	loginCfg ratelimit.Config,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		engine:      engine,
		clk:         clk,
		tm:          tm,
		timing:      timing,
		email:       email,
		loginCfg:    loginCfg,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string  `json:"id"`
	TenantID  *string `json:"tenant_id,omitempty"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken string        `json:"access_token"`
	User        *UserResponse `json:"user"`
}

// Login authenticates a user. The rate limiter is consulted before any
// credential work and every outcome is recorded, so repeated failures
// against unknown accounts build lockout state just like failures
// against real ones.
func (s *AuthService) Login(ctx context.Context, email, password, rawAddress string) (*AuthResponse, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	decision, err := s.engine.Check(ctx, email, rawAddress)
	if err != nil {
		s.logger.Error("rate limit check failed", slog.Any("error", err))
		return nil, models.ErrStoreUnavailable
	}

	if !decision.Allowed {
		s.auditLogger.LogLoginAttempt(pkglogger.AuditEvent{
			EventType: "login_denied",
			AccountID: email,
			Address:   ratelimit.AnonymizeAddress(rawAddress),
			Reason:    decision.Reason,
			Success:   false,
		})
		return nil, s.rateLimited(decision)
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Record under the attempted identifier so probing unknown
			// accounts trips the same gates as real ones.
			if err := s.recordFailure(ctx, email, nil, rawAddress); err != nil {
				return nil, err
			}
			s.timing.Wait()
			s.logger.Info("login failed: invalid credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Check account status
	if err := validateAccountState(user); err != nil {
		s.logger.Info("login blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		s.auditLogger.LogLoginAttempt(pkglogger.AuditEvent{
			EventType: "login_blocked",
			TenantID:  tenantIDString(user.TenantID),
			AccountID: email,
			Address:   ratelimit.AnonymizeAddress(rawAddress),
			Reason:    user.Status,
			Success:   false,
		})
		return nil, err
	}

	// Verify password
	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		if err := s.recordFailure(ctx, email, user.TenantID, rawAddress); err != nil {
			return nil, err
		}
		// Alert only real accounts: the attempt that crosses the
		// threshold starts the lockout.
		if decision.Remaining == 1 {
			go s.notifyLockout(user.Email, user.TenantID, rawAddress)
		}
		s.timing.Wait()
		s.logger.Info("login failed: invalid credentials")
		return nil, models.ErrUnauthorized
	}

	if err := s.engine.Record(ctx, email, user.TenantID, rawAddress, true); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
		return nil, models.ErrStoreUnavailable
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, user.TenantID)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogLoginAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		TenantID:  tenantIDString(user.TenantID),
		AccountID: email,
		Address:   ratelimit.AnonymizeAddress(rawAddress),
		Success:   true,
	})

	return &AuthResponse{
		AccessToken: accessToken,
		User:        userModelToResponse(user),
	}, nil
}

// Session returns the account behind a validated token.
func (s *AuthService) Session(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by id", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		return nil, err
	}

	return userModelToResponse(user), nil
}

// recordFailure persists a failed attempt. A store insert failure is
// fatal: losing the record would let an attacker stay under the limits.
func (s *AuthService) recordFailure(ctx context.Context, email string, tenantID *string, rawAddress string) error {
	if err := s.engine.Record(ctx, email, tenantID, rawAddress, false); err != nil {
		s.logger.Error("failed to record login attempt", slog.Any("error", err))
		return models.ErrStoreUnavailable
	}

	s.auditLogger.LogLoginAttempt(pkglogger.AuditEvent{
		EventType: "login_failed",
		TenantID:  tenantIDString(tenantID),
		AccountID: email,
		Address:   ratelimit.AnonymizeAddress(rawAddress),
		Reason:    "invalid_credentials",
		Success:   false,
	})
	return nil
}

// notifyLockout re-checks the account gate to learn the lockout
// deadline, then emits the audit event and the owner alert. Runs in its
// own goroutine with a detached context: the denial response must not
// wait on email delivery.
func (s *AuthService) notifyLockout(email string, tenantID *string, rawAddress string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Empty address skips the address gate, so the decision reflects
	// the account lockout alone.
	decision, err := s.engine.Check(ctx, email, "")
	if err != nil {
		s.logger.Error("lockout notification check failed", slog.Any("error", err))
		return
	}
	if decision.Allowed {
		return
	}

	s.auditLogger.LogLockout(pkglogger.AuditEvent{
		TenantID:    tenantIDString(tenantID),
		AccountID:   email,
		Address:     ratelimit.AnonymizeAddress(rawAddress),
		Reason:      decision.Reason,
		LockedUntil: decision.LockedUntil,
	})

	if err := s.email.SendLockoutAlert(ctx, email, decision.LockedUntil); err != nil {
		s.logger.Error("failed to send lockout alert", slog.Any("error", err))
	}
}

// rateLimited converts a denial decision into the error the handler
// maps to 429. Address denials have no deadline; callers are told to
// retry after a full window.
func (s *AuthService) rateLimited(decision ratelimit.Decision) *RateLimitedError {
	rlErr := &RateLimitedError{
		Reason:      decision.Reason,
		LockedUntil: decision.LockedUntil,
	}
	if decision.LockedUntil.IsZero() {
		rlErr.RetryAfter = s.loginCfg.Window
	} else if remaining := decision.LockedUntil.Sub(s.clk.Now()); remaining > 0 {
		rlErr.RetryAfter = remaining
	}
	return rlErr
}

// validateAccountState checks if user account is in valid state for authentication
func validateAccountState(user *models.User) error {
	switch user.Status {
	case models.UserStatusDisabled:
		return models.ErrAccountDisabled
	case models.UserStatusSuspended:
		return models.ErrAccountSuspended
	case models.UserStatusActive:
		return nil
	default:
		return fmt.Errorf("unknown account status: %s", user.Status)
	}
}

func tenantIDString(tenantID *string) string {
	if tenantID == nil {
		return ""
	}
	return *tenantID
}

// userModelToResponse converts a user model to response DTO
func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		TenantID:  user.TenantID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
