package feed

import (
	"net/url"
	"strings"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
)

// ConfigFromValues builds a Config from query parameters. Unknown selector
// values are rejected rather than ignored.
func ConfigFromValues(values url.Values) (Config, error) {
	cfg := Config{
		View:   View(lower(values.Get("view"))),
		Sport:  values.Get("sport"),
		Search: values.Get("q"),
		Filters: AdvancedFilters{
			TimeRange: TimeRange(lower(values.Get("time"))),
			Status:    StatusFilter(lower(values.Get("status"))),
			UserType:  UserType(lower(values.Get("userType"))),
			OddsRange: OddsRange(lower(values.Get("odds"))),
			SortBy:    SortBy(lower(values.Get("sort"))),
		},
	}
	for _, raw := range values["tag"] {
		cfg.Filters.Tags = append(cfg.Filters.Tags, strings.Split(raw, ",")...)
	}
	cfg.Filters.Tags = models.NormalizeTags(cfg.Filters.Tags)

	for _, raw := range values["following"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				if cfg.Following == nil {
					cfg.Following = make(map[string]bool)
				}
				cfg.Following[id] = true
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every selector against its known values. Empty selectors are allowed.
func (c Config) Validate() error {
	switch c.View {
	case "", ViewLatest, ViewTop, ViewTrending:
	default:
		return utils.NewValidationError("unknown view: " + string(c.View))
	}
	switch c.Filters.TimeRange {
	case "", TimeAll, TimeToday, TimeWeek, TimeMonth:
	default:
		return utils.NewValidationError("unknown time range: " + string(c.Filters.TimeRange))
	}
	switch c.Filters.Status {
	case "", StatusAll, StatusVerified:
	default:
		if !models.TipStatus(c.Filters.Status).Valid() {
			return utils.NewValidationError("unknown status filter: " + string(c.Filters.Status))
		}
	}
	switch c.Filters.UserType {
	case "", UserTypeAll, UserTypeVerified, UserTypeFollowing:
	default:
		return utils.NewValidationError("unknown user type: " + string(c.Filters.UserType))
	}
	switch c.Filters.OddsRange {
	case "", OddsAll, OddsLow, OddsMedium, OddsHigh:
	default:
		return utils.NewValidationError("unknown odds range: " + string(c.Filters.OddsRange))
	}
	switch c.Filters.SortBy {
	case "", SortNone, SortLikes, SortComments, SortViews, SortTrending:
	default:
		return utils.NewValidationError("unknown sort: " + string(c.Filters.SortBy))
	}
	return nil
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
