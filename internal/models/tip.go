package models

import (
	"strings"
	"time"
)

// TipStatus is the verification outcome of a tip.
type TipStatus string

const (
	StatusPending TipStatus = "pending"
	StatusWin     TipStatus = "win"
	StatusLoss    TipStatus = "loss"
	StatusVoid    TipStatus = "void"
	StatusPlace   TipStatus = "place"
)

// AllStatuses lists every known status in display order.
var AllStatuses = []TipStatus{StatusPending, StatusWin, StatusLoss, StatusVoid, StatusPlace}

// ParseTipStatus converts a raw string into a known status.
func ParseTipStatus(raw string) (TipStatus, bool) {
	s := TipStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusWin, StatusLoss, StatusVoid, StatusPlace:
		return s, true
	}
	return "", false
}

// Valid reports whether s is a known status. The empty legacy status is not.
func (s TipStatus) Valid() bool {
	switch s {
	case StatusPending, StatusWin, StatusLoss, StatusVoid, StatusPlace:
		return true
	}
	return false
}

// IsTerminal reports whether the status is a moderator-assigned outcome.
func (s TipStatus) IsTerminal() bool {
	switch s {
	case StatusWin, StatusLoss, StatusVoid, StatusPlace:
		return true
	case StatusPending:
		return false
	}
	return false
}

// Author is the denormalized author reference stored on every tip.
type Author struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Handle   string `json:"handle"`
	Avatar   string `json:"avatar,omitempty"`
	Verified bool   `json:"verified"`
}

type Tip struct {
	ID             string     `json:"id"`
	Author         Author     `json:"author"`
	Sport          string     `json:"sport"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Odds           string     `json:"odds,omitempty"`
	Tags           []string   `json:"tags"`
	CreatedAt      time.Time  `json:"createdAt"`
	Likes          int        `json:"likes"`
	LikedBy        []string   `json:"likedBy"`
	Comments       int        `json:"comments"`
	Views          int        `json:"views"`
	Status         TipStatus  `json:"status"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty"`
	VerifiedBy     string     `json:"verifiedBy,omitempty"`
	GameDate       *time.Time `json:"gameDate,omitempty"`
	IsGameFinished bool       `json:"isGameFinished"`
	Revision       int        `json:"revision"` // bumped by every verification write
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (t *Tip) Clone() *Tip {
	if t == nil {
		return nil
	}
	c := *t
	c.Tags = append([]string(nil), t.Tags...)
	c.LikedBy = append([]string(nil), t.LikedBy...)
	if t.VerifiedAt != nil {
		v := *t.VerifiedAt
		c.VerifiedAt = &v
	}
	if t.GameDate != nil {
		g := *t.GameDate
		c.GameDate = &g
	}
	return &c
}

func (t *Tip) IsLikedBy(userID string) bool {
	for _, id := range t.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// AddLike adds userID to LikedBy if absent. Likes is kept in step with the set.
func (t *Tip) AddLike(userID string) {
	if t.IsLikedBy(userID) {
		return
	}
	t.LikedBy = append(t.LikedBy, userID)
	t.Likes++
}

// RemoveLike drops userID from LikedBy, never letting Likes go below zero.
func (t *Tip) RemoveLike(userID string) {
	kept := make([]string, 0, len(t.LikedBy))
	removed := false
	for _, id := range t.LikedBy {
		if id == userID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	t.LikedBy = kept
	if removed && t.Likes > 0 {
		t.Likes--
	}
}

// HasTag matches tags case-insensitively.
func (t *Tip) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// NormalizeTags trims, drops blanks and removes case-insensitive duplicates
// while keeping the first spelling and original order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}

// TipUpdate is a partial field merge. Nil fields are left untouched.
type TipUpdate struct {
	Title          *string
	Content        *string
	Odds           *string
	Tags           []string
	Status         *TipStatus
	VerifiedAt     *time.Time
	VerifiedBy     *string
	GameDate       *time.Time
	IsGameFinished *bool
}

// Apply merges the update into t.
func (u TipUpdate) Apply(t *Tip) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Content != nil {
		t.Content = *u.Content
	}
	if u.Odds != nil {
		t.Odds = *u.Odds
	}
	if u.Tags != nil {
		t.Tags = NormalizeTags(u.Tags)
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.VerifiedAt != nil {
		v := *u.VerifiedAt
		t.VerifiedAt = &v
	}
	if u.VerifiedBy != nil {
		t.VerifiedBy = *u.VerifiedBy
	}
	if u.GameDate != nil {
		g := *u.GameDate
		t.GameDate = &g
	}
	if u.IsGameFinished != nil {
		t.IsGameFinished = *u.IsGameFinished
	}
}
