package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"timelock-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	statsKeyPrefix = "timelock:stats:"
	genKeyPrefix   = "timelock:stats:gen:"
)

var errStaleGeneration = errors.New("stats generation changed")

// RedisStatsCache keeps relationship stats in Redis for a bounded time
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache creates a new Redis stats cache
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached stats of a partnership and its current generation,
// reporting a miss with ok=false
func (c *RedisStatsCache) Get(ctx context.Context, partnershipID string) (*models.RelationshipStats, uint64, bool, error) {
	values, err := c.client.MGet(ctx, statsKey(partnershipID), genKey(partnershipID)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to get cached stats: %w", err)
	}

	gen, err := parseGen(values[1])
	if err != nil {
		return nil, 0, false, err
	}
	data, ok := values[0].(string)
	if !ok {
		return nil, gen, false, nil
	}

	var stats models.RelationshipStats
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, 0, false, fmt.Errorf("failed to decode cached stats: %w", err)
	}
	return &stats, gen, true, nil
}

// Set caches the stats of a partnership unless it was invalidated after gen was read
func (c *RedisStatsCache) Set(ctx context.Context, partnershipID string, gen uint64, stats *models.RelationshipStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	key := genKey(partnershipID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, statsKey(partnershipID), data, c.ttl)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("failed to cache stats: %w", err)
	}
}

// Invalidate drops the cached stats of a partnership and advances its generation
func (c *RedisStatsCache) Invalidate(ctx context.Context, partnershipID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(partnershipID))
		pipe.Del(ctx, statsKey(partnershipID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate stats: %w", err)
	}
	return nil
}

func statsKey(partnershipID string) string {
	return statsKeyPrefix + partnershipID
}

func genKey(partnershipID string) string {
	return genKeyPrefix + partnershipID
}

// parseGen reads a generation counter as returned by MGET; a missing key is generation 0
func parseGen(v any) (uint64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stats generation %q: %w", s, err)
	}
	return gen, nil
}
