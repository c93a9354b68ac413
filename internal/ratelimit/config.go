package ratelimit

import "time"

// Config holds the limiter thresholds and horizons. It is loaded once at
// startup and passed by value; see internal/config for env parsing and
// validation.
type Config struct {
	MaxAttemptsPerAccount int
	MaxAttemptsPerAddress int
	Window                time.Duration
	InitialLockout        time.Duration
	MaxLockout            time.Duration
	LockoutGrowthFactor   float64
	Retention             time.Duration
}

// DefaultConfig returns the shipped defaults: 5 failures per account and
// 20 per address within a 15 minute window, lockouts growing from 15
// minutes by a factor of 2.0 up to 24 hours, and 7 days of attempt
// retention.
func DefaultConfig() Config {
	return Config{
		MaxAttemptsPerAccount: 5,
		MaxAttemptsPerAddress: 20,
		Window:                15 * time.Minute,
		InitialLockout:        15 * time.Minute,
		MaxLockout:            24 * time.Hour,
		LockoutGrowthFactor:   2.0,
		Retention:             7 * 24 * time.Hour,
	}
}
