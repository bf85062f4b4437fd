package tips

import (
	"strings"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/google/uuid"
)

const (
	maxTitleLength   = 200
	maxContentLength = 5000
	maxTags          = 10
)

// NewTipRequest is the author-supplied part of a tip.
type NewTipRequest struct {
	Sport    string     `json:"sport"`
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Odds     string     `json:"odds,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
	GameDate *time.Time `json:"gameDate,omitempty"`
}

// BuildTip validates req and returns a pending tip with a fresh id and zeroed
// engagement counters.
func BuildTip(author models.Author, req NewTipRequest, now time.Time) (*models.Tip, error) {
	if author.ID == "" {
		return nil, utils.NewUnauthorizedError("an authenticated author is required")
	}

	title := strings.TrimSpace(req.Title)
	sport := strings.TrimSpace(req.Sport)
	odds := strings.TrimSpace(req.Odds)
	switch {
	case title == "":
		return nil, utils.NewValidationError("title is required")
	case len(title) > maxTitleLength:
		return nil, utils.NewValidationError("title is too long")
	case sport == "":
		return nil, utils.NewValidationError("sport is required")
	case len(req.Content) > maxContentLength:
		return nil, utils.NewValidationError("content is too long")
	}
	if odds != "" {
		if _, err := models.ParseOdds(odds); err != nil {
			return nil, utils.NewValidationError("odds must be decimal like 2.5 or fractional like 3/1")
		}
	}
	tags := models.NormalizeTags(req.Tags)
	if len(tags) > maxTags {
		return nil, utils.NewValidationError("too many tags")
	}

	return &models.Tip{
		ID:        uuid.New().String(),
		Author:    author,
		Sport:     sport,
		Title:     title,
		Content:   strings.TrimSpace(req.Content),
		Odds:      odds,
		Tags:      tags,
		CreatedAt: now,
		LikedBy:   []string{},
		Status:    models.StatusPending,
		GameDate:  req.GameDate,
	}, nil
}
