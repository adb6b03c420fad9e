package usedkey

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// hashKey is the single Redis hash holding all consumed binding keys,
// field = binding key, value = period bucket.
const hashKey = "aurum:usedkeys"

// RedisStore persists used keys in Redis so multiple engine replicas
// share one replay-prevention set.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed used-key store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Add(ctx context.Context, key string, periodBucket int64) (bool, error) {
	inserted, err := s.client.HSetNX(ctx, hashKey, key, strconv.FormatInt(periodBucket, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("add used key: %w", err)
	}
	return inserted, nil
}

func (s *RedisStore) Contains(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.HExists(ctx, hashKey, key).Result()
	if err != nil {
		return false, fmt.Errorf("check used key: %w", err)
	}
	return exists, nil
}

func (s *RedisStore) ArchiveBefore(ctx context.Context, cutoffBucket int64) (int, error) {
	var (
		cursor  uint64
		dropped int
	)
	for {
		fields, next, err := s.client.HScan(ctx, hashKey, cursor, "*", 512).Result()
		if err != nil {
			return dropped, fmt.Errorf("scan used keys: %w", err)
		}

		var stale []string
		for i := 0; i+1 < len(fields); i += 2 {
			bucket, err := strconv.ParseInt(fields[i+1], 10, 64)
			if err != nil {
				continue
			}
			if bucket != FirstTimeBucket && bucket < cutoffBucket {
				stale = append(stale, fields[i])
			}
		}
		if len(stale) > 0 {
			removed, err := s.client.HDel(ctx, hashKey, stale...).Result()
			if err != nil {
				return dropped, fmt.Errorf("archive used keys: %w", err)
			}
			dropped += int(removed)
		}

		cursor = next
		if cursor == 0 {
			return dropped, nil
		}
	}
}
