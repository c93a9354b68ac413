package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marchalgreen/Rundeklar-sub004/internal/auth"
)

func TestTimingDelay_Wait(t *testing.T) {
	config := auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 50,
	}

	timing := auth.NewTimingDelay(config)
	startTime := time.Now()

	timing.Wait()

	elapsed := time.Since(startTime)
	// Should be at least 100ms (base) but less than 150ms (base + max random)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond) // Reasonable upper bound
}

func TestTimingDelay_Wait_ZeroConfig(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{})
	startTime := time.Now()

	timing.Wait()

	elapsed := time.Since(startTime)
	assert.Less(t, elapsed, 10*time.Millisecond)
}
