package models

import "time"

type Comment struct {
	ID        string    `json:"id"`
	TipID     string    `json:"tipId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	IsDeleted bool      `json:"isDeleted"`
}

// StatusResponse is the generic acknowledgement returned by mutating actors.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
