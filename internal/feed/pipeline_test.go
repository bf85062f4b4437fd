package feed

import (
	"net/url"
	"testing"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func tip(id string, mutate func(*models.Tip)) *models.Tip {
	t := &models.Tip{
		ID:        id,
		Author:    models.Author{ID: "author-" + id, Name: "Author " + id, Handle: "@" + id},
		Sport:     "Football",
		Title:     "Tip " + id,
		Content:   "body",
		Odds:      "2.5",
		CreatedAt: fixedNow.Add(-time.Hour),
		Status:    models.StatusPending,
	}
	if mutate != nil {
		mutate(t)
	}
	return t
}

func tipIDs(tips []*models.Tip) []string {
	out := make([]string, len(tips))
	for i, t := range tips {
		out[i] = t.ID
	}
	return out
}

func TestDeriveFeedNoConfigKeepsOrder(t *testing.T) {
	tips := []*models.Tip{tip("a", nil), tip("b", nil), tip("c", nil)}
	out := DeriveFeed(tips, Config{Now: clock})
	assert.Equal(t, []string{"a", "b", "c"}, tipIDs(out))
}

func TestDeriveFeedDoesNotMutateInput(t *testing.T) {
	tips := []*models.Tip{
		tip("a", func(t *models.Tip) { t.Likes = 1 }),
		tip("b", func(t *models.Tip) { t.Likes = 5 }),
	}
	DeriveFeed(tips, Config{View: ViewTrending, Now: clock})
	assert.Equal(t, []string{"a", "b"}, tipIDs(tips))
}

func TestDeriveFeedTopView(t *testing.T) {
	tips := []*models.Tip{
		tip("a", func(t *models.Tip) { t.Likes = 19 }),
		tip("b", func(t *models.Tip) { t.Likes = 20 }),
		tip("c", func(t *models.Tip) { t.Likes = 45 }),
	}
	out := DeriveFeed(tips, Config{View: ViewTop, Now: clock})
	assert.Equal(t, []string{"b", "c"}, tipIDs(out))
}

func TestDeriveFeedTrendingViewIsStable(t *testing.T) {
	tips := []*models.Tip{
		tip("a", func(t *models.Tip) { t.Likes = 1; t.Comments = 1 }),
		tip("b", func(t *models.Tip) { t.Likes = 5 }),
		tip("c", func(t *models.Tip) { t.Comments = 2 }),
	}
	out := DeriveFeed(tips, Config{View: ViewTrending, Now: clock})
	assert.Equal(t, []string{"b", "a", "c"}, tipIDs(out))
}

func TestDeriveFeedEngagementSortOverridesView(t *testing.T) {
	tips := []*models.Tip{
		tip("a", func(t *models.Tip) { t.Likes = 30; t.Views = 1 }),
		tip("b", func(t *models.Tip) { t.Likes = 10; t.Views = 50 }),
		tip("c", func(t *models.Tip) { t.Likes = 20; t.Views = 7 }),
	}
	cfg := Config{View: ViewTrending, Filters: AdvancedFilters{SortBy: SortViews}, Now: clock}
	out := DeriveFeed(tips, cfg)
	assert.Equal(t, []string{"b", "c", "a"}, tipIDs(out))
}

func TestDeriveFeedSport(t *testing.T) {
	tips := []*models.Tip{
		tip("a", nil),
		tip("b", func(t *models.Tip) { t.Sport = "Horse Racing" }),
	}
	assert.Equal(t, []string{"b"}, tipIDs(DeriveFeed(tips, Config{Sport: "horse racing", Now: clock})))
	assert.Len(t, DeriveFeed(tips, Config{Sport: "All Sports", Now: clock}), 2)
	assert.Len(t, DeriveFeed(tips, Config{Sport: AllSports, Now: clock}), 2)
}

func TestDeriveFeedSearch(t *testing.T) {
	tips := []*models.Tip{
		tip("a", func(t *models.Tip) { t.Title = "Arsenal to win" }),
		tip("b", func(t *models.Tip) { t.Tags = []string{"PremierLeague"} }),
		tip("c", func(t *models.Tip) { t.Author.Handle = "@gunner" }),
		tip("d", nil),
	}
	assert.Equal(t, []string{"a"}, tipIDs(DeriveFeed(tips, Config{Search: "ARSENAL", Now: clock})))
	assert.Equal(t, []string{"b"}, tipIDs(DeriveFeed(tips, Config{Search: "premier", Now: clock})))
	assert.Equal(t, []string{"c"}, tipIDs(DeriveFeed(tips, Config{Search: "gunner", Now: clock})))
	assert.Len(t, DeriveFeed(tips, Config{Search: "   ", Now: clock}), 4)
}

func TestDeriveFeedTimeRange(t *testing.T) {
	tips := []*models.Tip{
		tip("today", func(t *models.Tip) { t.CreatedAt = fixedNow.Add(-2 * time.Hour) }),
		tip("yesterday", func(t *models.Tip) { t.CreatedAt = fixedNow.Add(-20 * time.Hour) }),
		tip("lastweek", func(t *models.Tip) { t.CreatedAt = fixedNow.AddDate(0, 0, -6) }),
		tip("lastmonth", func(t *models.Tip) { t.CreatedAt = fixedNow.AddDate(0, 0, -20) }),
		tip("old", func(t *models.Tip) { t.CreatedAt = fixedNow.AddDate(0, 0, -60) }),
	}
	cfg := func(r TimeRange) Config { return Config{Filters: AdvancedFilters{TimeRange: r}, Now: clock} }

	assert.Equal(t, []string{"today"}, tipIDs(DeriveFeed(tips, cfg(TimeToday))))
	assert.Equal(t, []string{"today", "yesterday", "lastweek"}, tipIDs(DeriveFeed(tips, cfg(TimeWeek))))
	assert.Equal(t, []string{"today", "yesterday", "lastweek", "lastmonth"}, tipIDs(DeriveFeed(tips, cfg(TimeMonth))))
	assert.Len(t, DeriveFeed(tips, cfg(TimeAll)), 5)
}

func TestDeriveFeedStatus(t *testing.T) {
	tips := []*models.Tip{
		tip("p", nil),
		tip("w", func(t *models.Tip) { t.Status = models.StatusWin }),
		tip("l", func(t *models.Tip) { t.Status = models.StatusLoss }),
		tip("legacy", func(t *models.Tip) { t.Status = "" }),
	}
	cfg := func(s StatusFilter) Config { return Config{Filters: AdvancedFilters{Status: s}, Now: clock} }

	assert.Equal(t, []string{"w", "l"}, tipIDs(DeriveFeed(tips, cfg(StatusVerified))))
	assert.Equal(t, []string{"p"}, tipIDs(DeriveFeed(tips, cfg("pending"))))
	assert.Equal(t, []string{"l"}, tipIDs(DeriveFeed(tips, cfg("loss"))))
	assert.Len(t, DeriveFeed(tips, cfg(StatusAll)), 4)
}

func TestDeriveFeedUserType(t *testing.T) {
	tips := []*models.Tip{
		tip("a", func(t *models.Tip) { t.Author.Verified = true }),
		tip("b", nil),
	}
	verified := Config{Filters: AdvancedFilters{UserType: UserTypeVerified}, Now: clock}
	assert.Equal(t, []string{"a"}, tipIDs(DeriveFeed(tips, verified)))

	following := Config{
		Filters:   AdvancedFilters{UserType: UserTypeFollowing},
		Following: map[string]bool{"author-b": true},
		Now:       clock,
	}
	assert.Equal(t, []string{"b"}, tipIDs(DeriveFeed(tips, following)))
}

func TestDeriveFeedOddsBuckets(t *testing.T) {
	tips := []*models.Tip{
		tip("even", func(t *models.Tip) { t.Odds = "1/1" }),
		tip("short", func(t *models.Tip) { t.Odds = "1.05" }),
		tip("mid", func(t *models.Tip) { t.Odds = "3/1" }),
		tip("long", func(t *models.Tip) { t.Odds = "8.0" }),
		tip("bad", func(t *models.Tip) { t.Odds = "abc" }),
		tip("none", func(t *models.Tip) { t.Odds = "" }),
	}
	cfg := func(r OddsRange) Config { return Config{Filters: AdvancedFilters{OddsRange: r}, Now: clock} }

	assert.Equal(t, []string{"even"}, tipIDs(DeriveFeed(tips, cfg(OddsLow))))
	assert.Equal(t, []string{"mid"}, tipIDs(DeriveFeed(tips, cfg(OddsMedium))))
	assert.Equal(t, []string{"long"}, tipIDs(DeriveFeed(tips, cfg(OddsHigh))))
	assert.Len(t, DeriveFeed(tips, cfg(OddsAll)), 6)
}

func TestInOddsRangeBoundaries(t *testing.T) {
	assert.True(t, InOddsRange("1.1", OddsLow))
	assert.True(t, InOddsRange("2.0", OddsLow))
	assert.False(t, InOddsRange("2.0", OddsMedium))
	assert.True(t, InOddsRange("5.0", OddsMedium))
	assert.False(t, InOddsRange("5.0", OddsHigh))
	assert.True(t, InOddsRange("5.01", OddsHigh))
	assert.True(t, InOddsRange("abc", OddsAll))
}

func TestDeriveFeedTags(t *testing.T) {
	tips := []*models.Tip{
		tip("a", func(t *models.Tip) { t.Tags = []string{"Value", "EPL"} }),
		tip("b", func(t *models.Tip) { t.Tags = []string{"accumulator"} }),
		tip("c", nil),
	}
	cfg := Config{Filters: AdvancedFilters{Tags: []string{"epl", "Accumulator"}}, Now: clock}
	assert.Equal(t, []string{"a", "b"}, tipIDs(DeriveFeed(tips, cfg)))
}

func TestDeriveFeedIsDeterministic(t *testing.T) {
	tips := []*models.Tip{
		tip("a", func(t *models.Tip) { t.Likes = 3; t.Comments = 1 }),
		tip("b", func(t *models.Tip) { t.Likes = 2; t.Comments = 2 }),
		tip("c", func(t *models.Tip) { t.Likes = 4 }),
		tip("d", func(t *models.Tip) { t.Likes = 1; t.Status = models.StatusWin }),
	}
	cfg := Config{View: ViewTrending, Filters: AdvancedFilters{SortBy: SortTrending}, Now: clock}

	first := tipIDs(DeriveFeed(tips, cfg))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, tipIDs(DeriveFeed(tips, cfg)))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, first)
}

func TestConfigFromValues(t *testing.T) {
	values := url.Values{
		"view":      {"Top"},
		"sport":     {"Golf"},
		"q":         {"masters"},
		"time":      {"week"},
		"status":    {"verified"},
		"userType":  {"following"},
		"odds":      {"high"},
		"sort":      {"views"},
		"tag":       {"a,b", "B"},
		"following": {"u1, u2"},
	}
	cfg, err := ConfigFromValues(values)
	require.NoError(t, err)
	assert.Equal(t, ViewTop, cfg.View)
	assert.Equal(t, "Golf", cfg.Sport)
	assert.Equal(t, TimeWeek, cfg.Filters.TimeRange)
	assert.Equal(t, StatusVerified, cfg.Filters.Status)
	assert.Equal(t, UserTypeFollowing, cfg.Filters.UserType)
	assert.Equal(t, OddsHigh, cfg.Filters.OddsRange)
	assert.Equal(t, SortViews, cfg.Filters.SortBy)
	assert.Equal(t, []string{"a", "b"}, cfg.Filters.Tags)
	assert.Equal(t, map[string]bool{"u1": true, "u2": true}, cfg.Following)

	_, err = ConfigFromValues(url.Values{"view": {"hot"}})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))

	_, err = ConfigFromValues(url.Values{"status": {"lost"}})
	assert.True(t, utils.IsErrorCode(err, utils.ErrValidation))

	cfg, err = ConfigFromValues(url.Values{})
	require.NoError(t, err)
	assert.Empty(t, cfg.Filters.Tags)
}
