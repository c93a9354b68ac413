package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
}

func TestLoginConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   any
		expected any
	}{
		{"MaxAttemptsPerAccount", cfg.Login.MaxAttemptsPerAccount, 5},
		{"MaxAttemptsPerAddress", cfg.Login.MaxAttemptsPerAddress, 20},
		{"Window", cfg.Login.Window, 15 * time.Minute},
		{"InitialLockout", cfg.Login.InitialLockout, 15 * time.Minute},
		{"MaxLockout", cfg.Login.MaxLockout, 24 * time.Hour},
		{"LockoutGrowthFactor", cfg.Login.LockoutGrowthFactor, 2.0},
		{"Retention", cfg.Login.Retention, 168 * time.Hour},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestLoginConfig_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("LOGIN_MAX_ATTEMPTS_PER_ACCOUNT", "3")
	os.Setenv("LOGIN_MAX_ATTEMPTS_PER_ADDRESS", "50")
	os.Setenv("LOGIN_WINDOW_MINUTES", "30")
	os.Setenv("LOGIN_LOCKOUT_INITIAL_MINUTES", "5")
	os.Setenv("LOGIN_LOCKOUT_MAX_HOURS", "48")
	os.Setenv("LOGIN_LOCKOUT_GROWTH_FACTOR", "1.5")
	os.Setenv("LOGIN_RETENTION_HOURS", "240")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Login.MaxAttemptsPerAccount != 3 {
		t.Errorf("MaxAttemptsPerAccount: got %d, want 3", cfg.Login.MaxAttemptsPerAccount)
	}
	if cfg.Login.MaxAttemptsPerAddress != 50 {
		t.Errorf("MaxAttemptsPerAddress: got %d, want 50", cfg.Login.MaxAttemptsPerAddress)
	}
	if cfg.Login.Window != 30*time.Minute {
		t.Errorf("Window: got %v, want 30m", cfg.Login.Window)
	}
	if cfg.Login.InitialLockout != 5*time.Minute {
		t.Errorf("InitialLockout: got %v, want 5m", cfg.Login.InitialLockout)
	}
	if cfg.Login.MaxLockout != 48*time.Hour {
		t.Errorf("MaxLockout: got %v, want 48h", cfg.Login.MaxLockout)
	}
	if cfg.Login.LockoutGrowthFactor != 1.5 {
		t.Errorf("LockoutGrowthFactor: got %v, want 1.5", cfg.Login.LockoutGrowthFactor)
	}
	if cfg.Login.Retention != 240*time.Hour {
		t.Errorf("Retention: got %v, want 240h", cfg.Login.Retention)
	}
}

func TestLoginConfig_MalformedValuesNameTheKey(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"LOGIN_MAX_ATTEMPTS_PER_ACCOUNT", "five"},
		{"LOGIN_MAX_ATTEMPTS_PER_ADDRESS", "2.5"},
		{"LOGIN_WINDOW_MINUTES", "15m"},
		{"LOGIN_LOCKOUT_MAX_HOURS", "1day"},
		{"LOGIN_LOCKOUT_GROWTH_FACTOR", "double"},
		{"LOGIN_RETENTION_HOURS", "7d"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequiredEnv(t)
			os.Setenv(tt.key, tt.value)
			defer os.Clearenv()

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() = nil error, want failure for %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name the offending key %s", err, tt.key)
			}
		})
	}
}

func TestLoginConfig_ValidationRules(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantKey string
	}{
		{"zero account threshold", "LOGIN_MAX_ATTEMPTS_PER_ACCOUNT", "0", "LOGIN_MAX_ATTEMPTS_PER_ACCOUNT"},
		{"negative address threshold", "LOGIN_MAX_ATTEMPTS_PER_ADDRESS", "-1", "LOGIN_MAX_ATTEMPTS_PER_ADDRESS"},
		{"zero window", "LOGIN_WINDOW_MINUTES", "0", "LOGIN_WINDOW_MINUTES"},
		{"negative lockout", "LOGIN_LOCKOUT_INITIAL_MINUTES", "-15", "LOGIN_LOCKOUT_INITIAL_MINUTES"},
		{"zero max lockout", "LOGIN_LOCKOUT_MAX_HOURS", "0", "LOGIN_LOCKOUT_MAX_HOURS"},
		{"growth factor of one", "LOGIN_LOCKOUT_GROWTH_FACTOR", "1.0", "LOGIN_LOCKOUT_GROWTH_FACTOR"},
		{"retention below window", "LOGIN_RETENTION_HOURS", "0", "LOGIN_RETENTION_HOURS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			os.Setenv(tt.key, tt.value)
			defer os.Clearenv()

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() = nil error, want validation failure")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("error %q does not name the offending key %s", err, tt.wantKey)
			}
		})
	}
}

func TestStoreConfig_BackendSelection(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("LOGIN_STORE_BACKEND", "redis")
	os.Setenv("REDIS_ADDR", "redis.internal:6380")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Store.Backend != StoreBackendRedis {
		t.Errorf("Backend: got %q, want %q", cfg.Store.Backend, StoreBackendRedis)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis.Addr: got %q", cfg.Redis.Addr)
	}
}

func TestStoreConfig_UnknownBackendRejected(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("LOGIN_STORE_BACKEND", "cassandra")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() = nil error, want failure for unknown backend")
	}
	if !strings.Contains(err.Error(), "LOGIN_STORE_BACKEND") {
		t.Errorf("error %q does not name LOGIN_STORE_BACKEND", err)
	}
}

func TestStoreConfig_MemoryBackendNeedsNoDatabase(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("LOGIN_STORE_BACKEND", "memory")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	if cfg.Store.Backend != StoreBackendMemory {
		t.Errorf("Backend: got %q, want memory", cfg.Store.Backend)
	}
}

func TestServerConfig_Timeouts_Defaults(t *testing.T) {
	setRequiredEnv(t)
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestServerConfig_Timeouts_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("SERVER_READ_TIMEOUT", "30s")
	os.Setenv("SERVER_WRITE_TIMEOUT", "45s")
	os.Setenv("SERVER_IDLE_TIMEOUT", "120s")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout: got %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("WriteTimeout: got %v, want 45s", cfg.Server.WriteTimeout)
	}
	if cfg.Server.IdleTimeout != 120*time.Second {
		t.Errorf("IdleTimeout: got %v, want 120s", cfg.Server.IdleTimeout)
	}
}
