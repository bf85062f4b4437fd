package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
)

// TopLikesThreshold is the minimum like count for the "top" view.
const TopLikesThreshold = 20

// AllSports is the sport sentinel that disables sport filtering.
const AllSports = "all"

type View string

const (
	ViewLatest   View = "latest"
	ViewTop      View = "top"
	ViewTrending View = "trending"
)

type TimeRange string

const (
	TimeAll   TimeRange = "all"
	TimeToday TimeRange = "today"
	TimeWeek  TimeRange = "week"
	TimeMonth TimeRange = "month"
)

// StatusFilter is a tip status or one of the synthetic values "all" and "verified".
type StatusFilter string

const (
	StatusAll      StatusFilter = "all"
	StatusVerified StatusFilter = "verified"
)

type UserType string

const (
	UserTypeAll       UserType = "all"
	UserTypeVerified  UserType = "verified"
	UserTypeFollowing UserType = "following"
)

type OddsRange string

const (
	OddsAll    OddsRange = "all"
	OddsLow    OddsRange = "low"
	OddsMedium OddsRange = "medium"
	OddsHigh   OddsRange = "high"
)

type SortBy string

const (
	SortNone     SortBy = "none"
	SortLikes    SortBy = "likes"
	SortComments SortBy = "comments"
	SortViews    SortBy = "views"
	SortTrending SortBy = "trending"
)

// AdvancedFilters are the secondary filters. Zero values mean "no filter".
type AdvancedFilters struct {
	TimeRange TimeRange
	Status    StatusFilter
	UserType  UserType
	OddsRange OddsRange
	Tags      []string
	SortBy    SortBy
}

// Config is the full input to DeriveFeed besides the tips themselves.
type Config struct {
	View    View
	Sport   string
	Search  string
	Filters AdvancedFilters
	// Following holds the author ids the viewer follows, used by UserTypeFollowing.
	Following map[string]bool
	// Now is the wall clock used by time-range filters. Nil means time.Now.
	Now func() time.Time
}

// DeriveFeed applies the view, filters and sort in a fixed order and returns
// a new slice. The input slice and its tips are not modified. Every sort is
// stable so ties keep their earlier relative order.
func DeriveFeed(tips []*models.Tip, cfg Config) []*models.Tip {
	out := make([]*models.Tip, len(tips))
	copy(out, tips)

	switch cfg.View {
	case ViewTop:
		out = keep(out, func(t *models.Tip) bool { return t.Likes >= TopLikesThreshold })
	case ViewTrending:
		sortDesc(out, trendingScore)
	}

	if sport := strings.TrimSpace(cfg.Sport); sport != "" && !isAllSports(sport) {
		out = keep(out, func(t *models.Tip) bool { return strings.EqualFold(t.Sport, sport) })
	}

	if query := strings.ToLower(strings.TrimSpace(cfg.Search)); query != "" {
		out = keep(out, func(t *models.Tip) bool { return matchesSearch(t, query) })
	}

	f := cfg.Filters
	if cutoff, ok := timeCutoff(f.TimeRange, cfg.now()); ok {
		out = keep(out, func(t *models.Tip) bool { return !t.CreatedAt.Before(cutoff) })
	}

	switch f.Status {
	case "", StatusAll:
	case StatusVerified:
		out = keep(out, func(t *models.Tip) bool { return t.Status.IsTerminal() })
	default:
		want := models.TipStatus(f.Status)
		out = keep(out, func(t *models.Tip) bool { return t.Status == want })
	}

	switch f.UserType {
	case UserTypeVerified:
		out = keep(out, func(t *models.Tip) bool { return t.Author.Verified })
	case UserTypeFollowing:
		out = keep(out, func(t *models.Tip) bool { return cfg.Following[t.Author.ID] })
	}

	if f.OddsRange != "" && f.OddsRange != OddsAll {
		out = keep(out, func(t *models.Tip) bool { return InOddsRange(t.Odds, f.OddsRange) })
	}

	if len(f.Tags) > 0 {
		out = keep(out, func(t *models.Tip) bool {
			for _, tag := range f.Tags {
				if t.HasTag(tag) {
					return true
				}
			}
			return false
		})
	}

	switch f.SortBy {
	case SortLikes:
		sortDesc(out, func(t *models.Tip) int { return t.Likes })
	case SortComments:
		sortDesc(out, func(t *models.Tip) int { return t.Comments })
	case SortViews:
		sortDesc(out, func(t *models.Tip) int { return t.Views })
	case SortTrending:
		sortDesc(out, trendingScore)
	}

	return out
}

// InOddsRange reports whether raw odds fall in the bucket. Unparsable odds
// belong to no bucket.
func InOddsRange(raw string, r OddsRange) bool {
	if r == "" || r == OddsAll {
		return true
	}
	odds, err := models.ParseOdds(raw)
	if err != nil {
		return false
	}
	switch r {
	case OddsLow:
		return odds >= 1.1 && odds <= 2.0
	case OddsMedium:
		return odds > 2.0 && odds <= 5.0
	case OddsHigh:
		return odds > 5.0
	}
	return false
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func timeCutoff(r TimeRange, now time.Time) (time.Time, bool) {
	switch r {
	case TimeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case TimeWeek:
		return now.AddDate(0, 0, -7), true
	case TimeMonth:
		return now.AddDate(0, 0, -30), true
	}
	return time.Time{}, false
}

func isAllSports(sport string) bool {
	return strings.EqualFold(sport, AllSports) || strings.EqualFold(sport, "all sports")
}

func matchesSearch(t *models.Tip, query string) bool {
	fields := []string{t.Title, t.Content, t.Sport, t.Author.Name, t.Author.Handle}
	fields = append(fields, t.Tags...)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func trendingScore(t *models.Tip) int {
	return t.Likes + t.Comments
}

func keep(tips []*models.Tip, pred func(*models.Tip) bool) []*models.Tip {
	out := tips[:0:0]
	for _, t := range tips {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

func sortDesc(tips []*models.Tip, key func(*models.Tip) int) {
	sort.SliceStable(tips, func(i, j int) bool {
		return key(tips[i]) > key(tips[j])
	})
}
