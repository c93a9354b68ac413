package ratelimit

import "github.com/marchalgreen/Rundeklar-sub004/internal/models"

// CountEpisodes counts completed lockout episodes in an attempt stream
// ordered oldest first. An episode is one run of consecutive failures
// that reached the threshold; a success resets the run without undoing
// episodes already counted. The final threshold crossing only counts
// once a later success seals it: an unsealed trailing crossing is the
// in-progress lockout, which the Engine accounts for separately.
func CountEpisodes(attempts []models.LoginAttempt, threshold int) int {
	if threshold < 1 {
		return 0
	}

	episodes := 0
	consecutive := 0
	sealed := true
	for _, attempt := range attempts {
		if attempt.Success {
			consecutive = 0
			sealed = true
			continue
		}
		consecutive++
		if consecutive >= threshold {
			episodes++
			consecutive = 0
			sealed = false
		}
	}

	if !sealed && episodes > 0 {
		episodes--
	}
	return episodes
}
