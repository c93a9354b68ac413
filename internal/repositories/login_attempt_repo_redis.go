package repositories

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marchalgreen/Rundeklar-sub004/internal/models"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
)

const (
	redisAttemptIDKey        = "login:attempts:id"
	redisAccountKeyPrefix    = "login:attempts:account:"
	redisAddressKeyPrefix    = "login:attempts:address:"
	redisAttemptScanPattern  = "login:attempts:*"
	redisAttemptScanPageSize = 256
)

// RedisLoginAttemptStore indexes attempts in two sorted sets: one per
// account holding every attempt, one per address holding failures only.
// Scores carry the attempt instant at microsecond resolution, which is
// exactly representable as a float64; the member payload holds the full
// instant and is re-checked after range reads.
type RedisLoginAttemptStore struct {
	rdb    redis.UniversalClient
	keyTTL time.Duration
}

var _ ratelimit.AttemptStore = (*RedisLoginAttemptStore)(nil)

// NewRedisLoginAttemptStore wraps an existing client. keyTTL is the
// expiration refreshed on every insert so that idle keys disappear even
// if the sweeper never runs; pass 0 to disable.
func NewRedisLoginAttemptStore(rdb redis.UniversalClient, keyTTL time.Duration) *RedisLoginAttemptStore {
	return &RedisLoginAttemptStore{
		rdb:    rdb,
		keyTTL: keyTTL,
	}
}

type redisAttempt struct {
	ID        int64   `json:"id"`
	TenantID  *string `json:"tenant_id,omitempty"`
	AccountID string  `json:"account_id"`
	Address   *string `json:"address,omitempty"`
	Success   bool    `json:"success"`
	CreatedAt int64   `json:"created_at_ns"`
}

func redisAccountKey(accountID string) string {
	return redisAccountKeyPrefix + accountID
}

func redisAddressKey(address string) string {
	return redisAddressKeyPrefix + address
}

func redisScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func redisScoreBound(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func (s *RedisLoginAttemptStore) Insert(ctx context.Context, attempt *models.LoginAttempt) error {
	id, err := s.rdb.Incr(ctx, redisAttemptIDKey).Result()
	if err != nil {
		return err
	}
	attempt.ID = id

	payload, err := json.Marshal(redisAttempt{
		ID:        attempt.ID,
		TenantID:  attempt.TenantID,
		AccountID: attempt.AccountID,
		Address:   attempt.Address,
		Success:   attempt.Success,
		CreatedAt: attempt.CreatedAt.UnixNano(),
	})
	if err != nil {
		return err
	}

	accountKey := redisAccountKey(attempt.AccountID)
	score := redisScore(attempt.CreatedAt)

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, accountKey, redis.Z{Score: score, Member: payload})
	if s.keyTTL > 0 {
		pipe.Expire(ctx, accountKey, s.keyTTL)
	}
	if !attempt.Success && attempt.Address != nil && *attempt.Address != "" {
		addressKey := redisAddressKey(*attempt.Address)
		pipe.ZAdd(ctx, addressKey, redis.Z{Score: score, Member: strconv.FormatInt(id, 10)})
		if s.keyTTL > 0 {
			pipe.Expire(ctx, addressKey, s.keyTTL)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisLoginAttemptStore) ListRecentByAccount(ctx context.Context, accountID string, since time.Time, limit int) ([]models.LoginAttempt, error) {
	opt := &redis.ZRangeBy{
		Min: redisScoreBound(since),
		Max: "+inf",
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	members, err := s.rdb.ZRevRangeByScore(ctx, redisAccountKey(accountID), opt).Result()
	if err != nil {
		return nil, err
	}

	attempts, err := decodeRedisAttempts(members, since)
	if err != nil {
		return nil, err
	}
	sort.Slice(attempts, func(i, j int) bool {
		if !attempts[i].CreatedAt.Equal(attempts[j].CreatedAt) {
			return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
		}
		return attempts[i].ID > attempts[j].ID
	})
	return attempts, nil
}

func (s *RedisLoginAttemptStore) CountFailuresByAddress(ctx context.Context, address string, since time.Time) (int, error) {
	count, err := s.rdb.ZCount(ctx, redisAddressKey(address), redisScoreBound(since), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *RedisLoginAttemptStore) ListByAccountSince(ctx context.Context, accountID string, since time.Time) ([]models.LoginAttempt, error) {
	members, err := s.rdb.ZRangeByScore(ctx, redisAccountKey(accountID), &redis.ZRangeBy{
		Min: redisScoreBound(since),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	attempts, err := decodeRedisAttempts(members, since)
	if err != nil {
		return nil, err
	}
	sort.Slice(attempts, func(i, j int) bool {
		if !attempts[i].CreatedAt.Equal(attempts[j].CreatedAt) {
			return attempts[i].CreatedAt.Before(attempts[j].CreatedAt)
		}
		return attempts[i].ID < attempts[j].ID
	})
	return attempts, nil
}

// PurgeOlderThan walks the attempt keyspace and trims entries below the
// cutoff score. The count covers account entries only so that a failure
// indexed under both keys is not reported twice.
func (s *RedisLoginAttemptStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	maxBound := "(" + redisScoreBound(cutoff)

	var removed int64
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, redisAttemptScanPattern, redisAttemptScanPageSize).Result()
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			if key == redisAttemptIDKey {
				continue
			}
			n, err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", maxBound).Result()
			if err != nil {
				return removed, err
			}
			if strings.HasPrefix(key, redisAccountKeyPrefix) {
				removed += n
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

func decodeRedisAttempts(members []string, since time.Time) ([]models.LoginAttempt, error) {
	var attempts []models.LoginAttempt
	for _, member := range members {
		var entry redisAttempt
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			return nil, err
		}
		createdAt := time.Unix(0, entry.CreatedAt).UTC()
		if createdAt.Before(since) {
			continue
		}
		attempts = append(attempts, models.LoginAttempt{
			ID:        entry.ID,
			TenantID:  entry.TenantID,
			AccountID: entry.AccountID,
			Address:   entry.Address,
			Success:   entry.Success,
			CreatedAt: createdAt,
		})
	}
	return attempts, nil
}
