package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKeyPrefix = "tipster:leaderboard:"
	userStatsKeyPrefix   = "tipster:stats:user:"
	generationKey        = "tipster:stats:generation"
)

var errStaleGeneration = errors.New("stats cache generation changed")

// Cache stores computed leaderboards and user stats in Redis. Every method
// treats Redis errors as a miss; the cache never fails a read.
//
// Writes carry the generation read before the value was computed. Invalidate
// bumps the generation, so a build that overlapped an invalidation never
// stores its result.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func leaderboardKey(minTips int) string {
	return fmt.Sprintf("%s%d", leaderboardKeyPrefix, minTips)
}

func userStatsKey(userID string) string {
	return userStatsKeyPrefix + userID
}

func (c *Cache) GetLeaderboard(ctx context.Context, minTips int) ([]LeaderboardEntry, bool) {
	var out []LeaderboardEntry
	if !c.get(ctx, leaderboardKey(minTips), &out) {
		return nil, false
	}
	return out, true
}

func (c *Cache) SetLeaderboard(ctx context.Context, gen int64, minTips int, entries []LeaderboardEntry) {
	c.set(ctx, gen, leaderboardKey(minTips), entries)
}

func (c *Cache) GetUserStats(ctx context.Context, userID string) (UserStats, bool) {
	var out UserStats
	if !c.get(ctx, userStatsKey(userID), &out) {
		return UserStats{}, false
	}
	return out, true
}

func (c *Cache) SetUserStats(ctx context.Context, gen int64, st UserStats) {
	c.set(ctx, gen, userStatsKey(st.UserID), st)
}

// Generation returns the current invalidation counter, or -1 when Redis
// cannot be read, which makes every write under it a no-op.
func (c *Cache) Generation(ctx context.Context) int64 {
	n, err := c.client.Get(ctx, generationKey).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		utils.Log.WithError(err).Debug("Stats cache generation read failed")
		return -1
	}
	return n
}

// Invalidate drops every cached leaderboard and userID's stats. An empty
// userID drops every user's stats.
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		utils.Log.WithError(err).Warn("Failed to bump stats cache generation")
	}

	keys := c.scan(ctx, leaderboardKeyPrefix+"*")
	if userID != "" {
		keys = append(keys, userStatsKey(userID))
	} else {
		keys = append(keys, c.scan(ctx, userStatsKeyPrefix+"*")...)
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		utils.Log.WithError(err).Warn("Failed to invalidate stats cache")
	}
}

func (c *Cache) scan(ctx context.Context, pattern string) []string {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		utils.Log.WithError(err).WithField("pattern", pattern).Warn("Failed to scan stats cache keys")
	}
	return keys
}

func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			utils.Log.WithError(err).WithField("key", key).Debug("Stats cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		utils.Log.WithError(err).WithField("key", key).Warn("Discarding corrupt stats cache entry")
		return false
	}
	return true
}

// set writes key only while the generation still equals gen. WATCH makes an
// Invalidate landing between the check and the write abort the transaction.
func (c *Cache) set(ctx context.Context, gen int64, key string, v any) {
	if gen < 0 {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}, generationKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		utils.Log.WithField("key", key).Debug("Skipped stats cache write from a stale build")
	default:
		utils.Log.WithError(err).WithField("key", key).Debug("Stats cache write failed")
	}
}

func (c *Cache) Close() error {
	return c.client.Close()
}
