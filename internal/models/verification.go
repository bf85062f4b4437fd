package models

import "time"

// VerificationRecord is written once per moderator verification action.
type VerificationRecord struct {
	ID          string    `json:"id"`
	TipID       string    `json:"tipId"`
	AuthorID    string    `json:"authorId"`
	ModeratorID string    `json:"moderatorId"`
	Status      TipStatus `json:"status"`
	Note        string    `json:"note,omitempty"`
	Odds        string    `json:"odds,omitempty"` // odds on the tip at verification time
	CreatedAt   time.Time `json:"createdAt"`
}
