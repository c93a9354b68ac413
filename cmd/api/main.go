package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/marchalgreen/Rundeklar-sub004/internal/auth"
	"github.com/marchalgreen/Rundeklar-sub004/internal/background"
	"github.com/marchalgreen/Rundeklar-sub004/internal/clock"
	"github.com/marchalgreen/Rundeklar-sub004/internal/config"
	"github.com/marchalgreen/Rundeklar-sub004/internal/database"
	"github.com/marchalgreen/Rundeklar-sub004/internal/handlers"
	middlewareCustom "github.com/marchalgreen/Rundeklar-sub004/internal/middleware"
	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
	"github.com/marchalgreen/Rundeklar-sub004/internal/repositories"
	"github.com/marchalgreen/Rundeklar-sub004/internal/routes"
	"github.com/marchalgreen/Rundeklar-sub004/internal/services"
	pkgauth "github.com/marchalgreen/Rundeklar-sub004/pkg/auth"
	pkghttp "github.com/marchalgreen/Rundeklar-sub004/pkg/http"
	pkglogger "github.com/marchalgreen/Rundeklar-sub004/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("attempt_store", cfg.Store.Backend))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)

	// Attempt store backend for the sign-in rate limiter
	attemptStore, storeCloser, err := newAttemptStore(cfg, db, logger)
	if err != nil {
		logger.Error("failed to initialize attempt store", slog.Any("error", err))
		os.Exit(1)
	}
	if storeCloser != nil {
		defer storeCloser()
	}

	clk := clock.System{}
	engine := ratelimit.NewEngine(attemptStore, clk, cfg.Login, logger)

	// Periodic retention sweep for recorded attempts
	cleanupManager := background.NewCleanupManager(attemptStore, clk, logger, cfg.Store.SweepInterval, cfg.Login.Retention)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingBaseMs,
		RandomDelayMs: cfg.Auth.TimingJitterMs,
	})

	// Lockout alerts go through SES when email is enabled
	var emailService services.EmailService
	if cfg.Email.Enabled {
		sesService, err := services.NewAWSSESEmailService(cfg.Email.Region, cfg.Email.FromAddress, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		emailService = sesService
	} else {
		emailService = services.NewNoopEmailService(logger)
	}

	// Initialize services
	authService := services.NewAuthService(
		userRepo,
		engine,
		clk,
		tokenManager,
		timingDelay,
		emailService,
		cfg.Login,
		logger,
		auditLogger,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)

	// Setup router. RealIP-style rewriting is deliberately absent: the
	// client address feeds the lockout gates, so forwarding headers are
	// honored only via the trusted-proxy check in ExtractClientIP.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, tokenManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newAttemptStore builds the attempt store named by LOGIN_STORE_BACKEND.
// The returned closer, when non-nil, releases backend resources on
// shutdown; the PostgreSQL backend shares the primary pool, which main
// closes itself.
func newAttemptStore(cfg *config.Config, db *database.DB, logger *slog.Logger) (ratelimit.AttemptStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		return repositories.NewLoginAttemptRepository(db), nil, nil

	case config.StoreBackendSQLite:
		store, err := repositories.NewSQLiteLoginAttemptStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close sqlite store", slog.Any("error", err))
			}
		}, nil

	case config.StoreBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("pinging redis: %w", err)
		}
		// Keys expire a window past retention so the sweep stays a
		// formality for this backend.
		keyTTL := cfg.Login.Retention + cfg.Login.Window
		return repositories.NewRedisLoginAttemptStore(rdb, keyTTL), func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("failed to close redis client", slog.Any("error", err))
			}
		}, nil

	case config.StoreBackendMemory:
		logger.Warn("using in-memory attempt store; lockout state resets on restart")
		return ratelimit.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown attempt store backend %q", cfg.Store.Backend)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	// Hash password
	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	// Create admin user
	admin := &models.User{
		Email:        adminEmail,
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         "admin",
		Status:       models.UserStatusActive,
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
