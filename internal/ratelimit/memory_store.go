package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
)

// MemoryStore is the reference AttemptStore: a mutex-guarded slice with
// store-assigned ids providing the insertion-order tie-break. It backs
// the unit tests and development runs without external services.
type MemoryStore struct {
	mu       sync.Mutex
	attempts []models.LoginAttempt
	nextID   int64
}

var _ AttemptStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, attempt *models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	stored := *attempt
	stored.ID = s.nextID
	if attempt.TenantID != nil {
		tenant := *attempt.TenantID
		stored.TenantID = &tenant
	}
	if attempt.Address != nil {
		address := *attempt.Address
		stored.Address = &address
	}
	s.attempts = append(s.attempts, stored)
	attempt.ID = stored.ID
	return nil
}

func (s *MemoryStore) ListRecentByAccount(_ context.Context, accountID string, since time.Time, limit int) ([]models.LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := s.byAccountSince(accountID, since)
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) CountFailuresByAddress(_ context.Context, address string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, attempt := range s.attempts {
		if attempt.Success || attempt.Address == nil || *attempt.Address != address {
			continue
		}
		if attempt.CreatedAt.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *MemoryStore) ListByAccountSince(_ context.Context, accountID string, since time.Time) ([]models.LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := s.byAccountSince(accountID, since)
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	return matches, nil
}

func (s *MemoryStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.attempts[:0]
	var removed int64
	for _, attempt := range s.attempts {
		if attempt.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, attempt)
	}
	s.attempts = kept
	return removed, nil
}

// Len reports the number of stored records; used by retention tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

// All returns a copy of every stored record in insertion order.
func (s *MemoryStore) All() []models.LoginAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LoginAttempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

func (s *MemoryStore) byAccountSince(accountID string, since time.Time) []models.LoginAttempt {
	var matches []models.LoginAttempt
	for _, attempt := range s.attempts {
		if attempt.AccountID != accountID || attempt.CreatedAt.Before(since) {
			continue
		}
		matches = append(matches, attempt)
	}
	return matches
}
