package ratelimit

import (
	"math"
	"time"
)

// LockoutDuration returns the lockout length for an account's nth
// episode, 1-based. The first episode gets InitialLockout; each later
// one grows geometrically by LockoutGrowthFactor, clamped at MaxLockout.
// The sequence is monotonically non-decreasing in the episode ordinal.
func (c Config) LockoutDuration(episode int) time.Duration {
	if episode <= 1 {
		return c.InitialLockout
	}

	// Scale in float64 and compare before converting back: large
	// ordinals overflow time.Duration long before the clamp binds.
	scaled := float64(c.InitialLockout) * math.Pow(c.LockoutGrowthFactor, float64(episode-1))
	if scaled >= float64(c.MaxLockout) {
		return c.MaxLockout
	}
	return time.Duration(scaled)
}
