package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/marchalgreen/Rundeklar-sub004/internal/auth"
	"github.com/marchalgreen/Rundeklar-sub004/internal/clock"
	"github.com/marchalgreen/Rundeklar-sub004/internal/config"
	"github.com/marchalgreen/Rundeklar-sub004/internal/database"
	"github.com/marchalgreen/Rundeklar-sub004/internal/handlers"
	middlewareCustom "github.com/marchalgreen/Rundeklar-sub004/internal/middleware"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
	"github.com/marchalgreen/Rundeklar-sub004/internal/routes"
	"github.com/marchalgreen/Rundeklar-sub004/internal/services"
	pkghttp "github.com/marchalgreen/Rundeklar-sub004/pkg/http"
	pkglogger "github.com/marchalgreen/Rundeklar-sub004/pkg/logger"
)

// SentAlert represents a captured lockout notification
type SentAlert struct {
	Email       string
	LockedUntil time.Time
}

// MockEmailService captures lockout alerts for test assertions
type MockEmailService struct {
	Alerts []SentAlert
	mu     sync.Mutex
}

// SendLockoutAlert records the alert
func (m *MockEmailService) SendLockoutAlert(ctx context.Context, email string, lockedUntil time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Alerts = append(m.Alerts, SentAlert{
		Email:       email,
		LockedUntil: lockedUntil,
	})
	return nil
}

// AlertCount returns how many alerts have been sent
func (m *MockEmailService) AlertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}

// WaitForAlert polls until an alert arrives or the timeout passes. The
// service sends alerts from a goroutine, so tests must not read the
// slice directly right after a locked-out login.
func (m *MockEmailService) WaitForAlert(timeout time.Duration) *SentAlert {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		if len(m.Alerts) > 0 {
			alert := m.Alerts[len(m.Alerts)-1]
			m.mu.Unlock()
			return &alert
		}
		m.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	Pool         *database.DB
	EmailService *MockEmailService
	Config       *config.Config
	Engine       *ratelimit.Engine

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server with real database + mocked email
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Create test config
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "test-secret-32-characters-long-for-testing",
			AccessTokenExpiry: 15 * time.Minute,
			TimingBaseMs:      100,
			TimingJitterMs:    50,
		},
		Login: ratelimit.Config{
			MaxAttemptsPerAccount: 5,
			MaxAttemptsPerAddress: 20,
			Window:                15 * time.Minute,
			InitialLockout:        15 * time.Minute,
			MaxLockout:            24 * time.Hour,
			LockoutGrowthFactor:   2.0,
			Retention:             7 * 24 * time.Hour,
		},
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
	}

	// Initialize repositories
	userRepo, loginAttemptRepo := InitializeRepositories(db)

	// Create mock email service
	mockEmail := &MockEmailService{
		Alerts: []SentAlert{},
	}

	// Rate limiter engine on the wall clock
	engine := ratelimit.NewEngine(loginAttemptRepo, clock.System{}, cfg.Login, logger)

	// Initialize TokenManager
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
	)

	// Initialize audit logger
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Timing delay for auth security
	timingConfig := auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingBaseMs,
		RandomDelayMs: cfg.Auth.TimingJitterMs,
	}
	timingDelay := auth.NewTimingDelay(timingConfig)

	// Initialize services
	authService := services.NewAuthService(
		userRepo,
		engine,
		clock.System{},
		tokenManager,
		timingDelay,
		mockEmail,
		cfg.Login,
		logger,
		auditLogger,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{
		TrustedProxies: cfg.Server.TrustedProxies,
	}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)

	// Setup Chi router with middleware, mirroring the production stack
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Setup routes using production pattern
	routes.RegisterRoutes(r, authHandler, tokenManager)

	// Create httptest.Server
	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		Pool:         db,
		EmailService: mockEmail,
		Config:       cfg,
		Engine:       engine,
		logger:       logger,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	if headers != nil {
		for key, value := range headers {
			req.Header.Set(key, value)
		}
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with access token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + accessToken,
	}
	return ts.Request(method, path, body, headers)
}

// Login posts credentials to the sign-in endpoint
func (ts *TestServer) Login(email, password string) (*http.Response, error) {
	return ts.Request(http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractAccessToken extracts the access token from an auth response
func ExtractAccessToken(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	var authResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	access, ok := authResp["access_token"].(string)
	if !ok || access == "" {
		return "", fmt.Errorf("response carries no access token")
	}

	return access, nil
}

// DecodeError extracts the error code and message from an error response
func DecodeError(resp *http.Response) (code, message string, err error) {
	defer resp.Body.Close()

	var errResp pkghttp.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", "", err
	}
	return errResp.Error, errResp.Message, nil
}
