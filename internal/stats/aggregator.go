package stats

import (
	"context"

	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/sirupsen/logrus"
)

// Aggregator computes user stats and leaderboards from the full tip set,
// independent of any session's visible feed.
type Aggregator struct {
	store   database.Store
	cache   *Cache // nil disables caching
	metrics *utils.MetricsCollector
}

func NewAggregator(store database.Store, cache *Cache, metrics *utils.MetricsCollector) *Aggregator {
	return &Aggregator{store: store, cache: cache, metrics: metrics}
}

// GetUserStats returns the stats for one author. A user with no profile and
// no tips is NOT_FOUND.
func (a *Aggregator) GetUserStats(ctx context.Context, userID string) (UserStats, error) {
	st, err := a.cachedOrCompute(ctx, a.generation(ctx), userID)
	if err != nil {
		return UserStats{}, err
	}
	if st.TotalTips == 0 {
		if _, err := a.store.GetUser(ctx, userID); err != nil {
			return UserStats{}, utils.AsStoreError("get user", err)
		}
	}
	return st, nil
}

// computeUserStats reads userID's tips and caches the result under gen.
func (a *Aggregator) computeUserStats(ctx context.Context, gen int64, userID string) (UserStats, error) {
	tips, err := a.store.ListTips(ctx, database.TipQuery{AuthorID: userID})
	if err != nil {
		return UserStats{}, utils.AsStoreError("list tips", err)
	}
	st := ComputeUserStats(userID, tips)
	if a.cache != nil {
		a.cache.SetUserStats(ctx, gen, st)
	}
	return st, nil
}

func (a *Aggregator) generation(ctx context.Context) int64 {
	if a.cache == nil {
		return 0
	}
	return a.cache.Generation(ctx)
}

// GetLeaderboard ranks every known user. A user whose tips cannot be read is
// logged and ranked with zero stats, which drops them from the board.
func (a *Aggregator) GetLeaderboard(ctx context.Context, minTips int) ([]LeaderboardEntry, error) {
	if minTips < 0 {
		minTips = 0
	}
	if a.cache != nil {
		if entries, ok := a.cache.GetLeaderboard(ctx, minTips); ok {
			a.record("leaderboard_cache_hit")
			return entries, nil
		}
	}

	// Read before any tips so an invalidation during the build discards it.
	gen := a.generation(ctx)

	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, utils.AsStoreError("list users", err)
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		st, err := a.cachedOrCompute(ctx, gen, u.ID)
		if err != nil {
			utils.Log.WithFields(logrus.Fields{
				"userID": u.ID,
				"error":  err,
			}).Warn("Failed to aggregate user stats, ranking with zero stats")
			a.record("stats_degraded")
			st = UserStats{UserID: u.ID, TopSports: []SportStat{}}
		}
		entries = append(entries, LeaderboardEntry{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Handle:      u.Handle,
			Verified:    u.Verified,
			Stats:       st,
		})
	}

	ranked := RankLeaderboard(entries, minTips)
	if a.cache != nil {
		a.cache.SetLeaderboard(ctx, gen, minTips, ranked)
	}
	return ranked, nil
}

func (a *Aggregator) cachedOrCompute(ctx context.Context, gen int64, userID string) (UserStats, error) {
	if a.cache != nil {
		if st, ok := a.cache.GetUserStats(ctx, userID); ok {
			a.record("stats_cache_hit")
			return st, nil
		}
	}
	return a.computeUserStats(ctx, gen, userID)
}

// Invalidate drops cached aggregates affected by a change to userID's tips.
func (a *Aggregator) Invalidate(ctx context.Context, userID string) {
	if a.cache != nil {
		a.cache.Invalidate(ctx, userID)
	}
}

func (a *Aggregator) record(event string) {
	if a.metrics != nil {
		a.metrics.RecordEvent(event)
	}
}
