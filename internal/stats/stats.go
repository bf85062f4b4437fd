package stats

import (
	"math"
	"sort"
	"strings"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
)

// MaxTopSports bounds the per-sport breakdown.
const MaxTopSports = 5

type SportStat struct {
	Sport   string `json:"sport"`
	Count   int    `json:"count"`
	WinRate int    `json:"winRate"`
}

// UserStats summarizes one author's tips. Tips without a status are not counted.
type UserStats struct {
	UserID       string      `json:"userId"`
	TotalTips    int         `json:"totalTips"`
	VerifiedTips int         `json:"verifiedTips"`
	PendingTips  int         `json:"pendingTips"`
	WinRate      int         `json:"winRate"`
	TotalWins    int         `json:"totalWins"`
	TotalLosses  int         `json:"totalLosses"`
	TotalVoids   int         `json:"totalVoids"`
	TotalPlaces  int         `json:"totalPlaces"`
	AvgOdds      float64     `json:"avgOdds"`
	TopSports    []SportStat `json:"topSports"`
}

type sportTally struct {
	sport    string
	count    int
	wins     int
	verified int
}

// ComputeUserStats folds tips into a UserStats. Callers pass the author's tips.
func ComputeUserStats(userID string, tips []*models.Tip) UserStats {
	st := UserStats{UserID: userID, TopSports: []SportStat{}}

	var oddsSum float64
	var oddsCount int
	bySport := make(map[string]*sportTally)
	var order []string

	for _, t := range tips {
		if t == nil || !t.Status.Valid() {
			continue
		}
		st.TotalTips++

		switch t.Status {
		case models.StatusPending:
			st.PendingTips++
		case models.StatusWin:
			st.TotalWins++
		case models.StatusLoss:
			st.TotalLosses++
		case models.StatusVoid:
			st.TotalVoids++
		case models.StatusPlace:
			st.TotalPlaces++
		}

		if odds, err := models.ParseOdds(t.Odds); err == nil {
			oddsSum += odds
			oddsCount++
		}

		key := strings.ToLower(strings.TrimSpace(t.Sport))
		tally, ok := bySport[key]
		if !ok {
			tally = &sportTally{sport: strings.TrimSpace(t.Sport)}
			bySport[key] = tally
			order = append(order, key)
		}
		tally.count++
		if t.Status.IsTerminal() {
			tally.verified++
		}
		if t.Status == models.StatusWin {
			tally.wins++
		}
	}

	st.VerifiedTips = st.TotalWins + st.TotalLosses + st.TotalVoids + st.TotalPlaces
	st.WinRate = percent(st.TotalWins, st.VerifiedTips)
	if oddsCount > 0 {
		st.AvgOdds = models.RoundTo(oddsSum/float64(oddsCount), 2)
	}

	for _, key := range order {
		tally := bySport[key]
		st.TopSports = append(st.TopSports, SportStat{
			Sport:   tally.sport,
			Count:   tally.count,
			WinRate: percent(tally.wins, tally.verified),
		})
	}
	sort.SliceStable(st.TopSports, func(i, j int) bool {
		return st.TopSports[i].Count > st.TopSports[j].Count
	})
	if len(st.TopSports) > MaxTopSports {
		st.TopSports = st.TopSports[:MaxTopSports]
	}
	return st
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Handle      string    `json:"handle"`
	Verified    bool      `json:"verified"`
	Stats       UserStats `json:"stats"`
}

// RankLeaderboard drops users with no counted tips or fewer than minTips,
// orders by win rate then tip volume, and assigns 1-based ranks. Ties beyond
// that keep the input order.
func RankLeaderboard(entries []LeaderboardEntry, minTips int) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if e.Stats.TotalTips == 0 || e.Stats.TotalTips < minTips {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stats.WinRate != out[j].Stats.WinRate {
			return out[i].Stats.WinRate > out[j].Stats.WinRate
		}
		return out[i].Stats.TotalTips > out[j].Stats.TotalTips
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
