package models

import "strings"

// DefaultPlacingSports are the racing and golf style formats where a
// "place" finish is a meaningful outcome.
var DefaultPlacingSports = []string{
	"Horse Racing",
	"Greyhound Racing",
	"Golf",
	"Motorsport",
	"Cycling",
}

// SportRules is the sport -> allowsPlaceStatus table consulted by verification.
type SportRules struct {
	placing map[string]bool
}

func NewSportRules(placingSports []string) *SportRules {
	rules := &SportRules{placing: make(map[string]bool, len(placingSports))}
	for _, sport := range placingSports {
		if key := sportKey(sport); key != "" {
			rules.placing[key] = true
		}
	}
	return rules
}

// AllowsPlace reports whether sport accepts the place status. Matching is case-insensitive.
func (r *SportRules) AllowsPlace(sport string) bool {
	if r == nil {
		return false
	}
	return r.placing[sportKey(sport)]
}

// AllowsStatus reports whether status is a legal verification target for sport.
func (r *SportRules) AllowsStatus(sport string, status TipStatus) bool {
	switch status {
	case StatusWin, StatusLoss, StatusVoid:
		return true
	case StatusPlace:
		return r.AllowsPlace(sport)
	case StatusPending:
		return false
	}
	return false
}

func sportKey(sport string) string {
	return strings.ToLower(strings.TrimSpace(sport))
}
