package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Login    ratelimit.Config
	Store    StoreConfig
	Redis    RedisConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	TimingBaseMs      int
	TimingJitterMs    int
}

// Attempt store backends selectable via LOGIN_STORE_BACKEND.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendSQLite   = "sqlite"
	StoreBackendRedis    = "redis"
	StoreBackendMemory   = "memory"
)

type StoreConfig struct {
	Backend       string
	SQLitePath    string
	SweepInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EmailConfig struct {
	Enabled     bool
	FromAddress string
	Region      string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	login, err := loadLoginConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "rundeklar"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseCommaList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 12*time.Hour),
			TimingBaseMs:      getEnvAsInt("LOGIN_TIMING_BASE_MS", 100),
			TimingJitterMs:    getEnvAsInt("LOGIN_TIMING_JITTER_MS", 50),
		},
		Login: login,
		Store: StoreConfig{
			Backend:       getEnv("LOGIN_STORE_BACKEND", StoreBackendPostgres),
			SQLitePath:    getEnv("LOGIN_STORE_SQLITE_PATH", "rundeklar_logins.db"),
			SweepInterval: getEnvAsDuration("ATTEMPT_SWEEP_INTERVAL", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			FromAddress: getEnv("EMAIL_FROM", "no-reply@rundeklar.dk"),
			Region:      getEnv("AWS_REGION", "eu-north-1"),
		},
	}

	// User accounts always live in PostgreSQL; the backend switch only
	// selects where login attempts are stored.
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	switch cfg.Store.Backend {
	case StoreBackendPostgres, StoreBackendSQLite, StoreBackendRedis, StoreBackendMemory:
	default:
		return nil, fmt.Errorf("LOGIN_STORE_BACKEND: unknown backend %q", cfg.Store.Backend)
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadLoginConfig reads the limiter keys. Unlike the lenient helpers used
// for server and pool tuning, a malformed or out-of-range value here
// aborts startup with the offending key named: silently falling back to a
// default would change lockout behavior.
func loadLoginConfig() (ratelimit.Config, error) {
	var cfg ratelimit.Config

	maxPerAccount, err := strictEnvInt("LOGIN_MAX_ATTEMPTS_PER_ACCOUNT", 5)
	if err != nil {
		return cfg, err
	}
	maxPerAddress, err := strictEnvInt("LOGIN_MAX_ATTEMPTS_PER_ADDRESS", 20)
	if err != nil {
		return cfg, err
	}
	windowMinutes, err := strictEnvInt("LOGIN_WINDOW_MINUTES", 15)
	if err != nil {
		return cfg, err
	}
	lockoutMinutes, err := strictEnvInt("LOGIN_LOCKOUT_INITIAL_MINUTES", 15)
	if err != nil {
		return cfg, err
	}
	maxLockoutHours, err := strictEnvInt("LOGIN_LOCKOUT_MAX_HOURS", 24)
	if err != nil {
		return cfg, err
	}
	growthFactor, err := strictEnvFloat("LOGIN_LOCKOUT_GROWTH_FACTOR", 2.0)
	if err != nil {
		return cfg, err
	}
	retentionHours, err := strictEnvInt("LOGIN_RETENTION_HOURS", 168)
	if err != nil {
		return cfg, err
	}

	cfg = ratelimit.Config{
		MaxAttemptsPerAccount: maxPerAccount,
		MaxAttemptsPerAddress: maxPerAddress,
		Window:                time.Duration(windowMinutes) * time.Minute,
		InitialLockout:        time.Duration(lockoutMinutes) * time.Minute,
		MaxLockout:            time.Duration(maxLockoutHours) * time.Hour,
		LockoutGrowthFactor:   growthFactor,
		Retention:             time.Duration(retentionHours) * time.Hour,
	}
	if err := validateLoginConfig(cfg); err != nil {
		return ratelimit.Config{}, err
	}
	return cfg, nil
}

func validateLoginConfig(cfg ratelimit.Config) error {
	if cfg.MaxAttemptsPerAccount < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS_PER_ACCOUNT must be at least 1")
	}
	if cfg.MaxAttemptsPerAddress < 1 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS_PER_ADDRESS must be at least 1")
	}
	if cfg.Window <= 0 {
		return fmt.Errorf("LOGIN_WINDOW_MINUTES must be positive")
	}
	if cfg.InitialLockout <= 0 {
		return fmt.Errorf("LOGIN_LOCKOUT_INITIAL_MINUTES must be positive")
	}
	if cfg.MaxLockout <= 0 {
		return fmt.Errorf("LOGIN_LOCKOUT_MAX_HOURS must be positive")
	}
	if cfg.LockoutGrowthFactor <= 1.0 {
		return fmt.Errorf("LOGIN_LOCKOUT_GROWTH_FACTOR must be greater than 1.0")
	}
	if cfg.Retention < cfg.Window {
		return fmt.Errorf("LOGIN_RETENTION_HOURS must cover at least the window duration")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func strictEnvInt(key string, defaultVal int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, value)
	}
	return parsed, nil
}

func strictEnvFloat(key string, defaultVal float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid decimal %q", key, value)
	}
	return parsed, nil
}

// parseCommaList splits a comma-separated value, trimming whitespace and
// dropping empty entries. An empty input yields nil, which downstream
// means "trust no proxies".
func parseCommaList(value string) []string {
	if value == "" {
		return nil
	}
	var entries []string
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
