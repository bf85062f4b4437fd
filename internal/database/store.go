package database

import (
	"context"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
)

// TipCounter names a cached integer field on a tip that only moves by deltas.
type TipCounter string

const (
	CounterLikes    TipCounter = "likes"
	CounterComments TipCounter = "comments"
	CounterViews    TipCounter = "views"
)

// Valid reports whether c is one of the known counters.
func (c TipCounter) Valid() bool {
	switch c {
	case CounterLikes, CounterComments, CounterViews:
		return true
	}
	return false
}

// TipQuery bounds a tip listing or subscription. Results are always ordered by
// creation time descending, ties broken by id.
type TipQuery struct {
	AuthorID string // empty means every author
	Limit    int    // zero means unbounded
}

// Store is the document-store collaborator the engine runs against. Every
// write to a counter is a relative delta so concurrent sessions never lose
// each other's updates.
type Store interface {
	// Connection
	Close(ctx context.Context) error

	// Tip methods
	CreateTip(ctx context.Context, tip *models.Tip) (string, error)
	GetTip(ctx context.Context, id string) (*models.Tip, error)
	UpdateTip(ctx context.Context, id string, update models.TipUpdate) error
	DeleteTip(ctx context.Context, id string) error
	ListTips(ctx context.Context, q TipQuery) ([]*models.Tip, error)
	SubscribeTips(ctx context.Context, q TipQuery) (Subscription[*models.Tip], error)

	// Counter methods
	IncrementTipField(ctx context.Context, id string, field TipCounter, delta int) error
	DecrementTipFieldClamped(ctx context.Context, id string, field TipCounter) error
	// SetLike adds or removes userID from likedBy and moves likes by one in
	// the same atomic write. It is a no-op when the set already agrees.
	SetLike(ctx context.Context, tipID, userID string, liked bool) error

	// ApplyVerification merges update into the tip only if its revision still
	// equals expectedRevision, bumping the revision on success.
	ApplyVerification(ctx context.Context, id string, update models.TipUpdate, expectedRevision int) error

	// Verification record methods. Listings are newest first; an empty tipID lists every record.
	CreateVerification(ctx context.Context, rec *models.VerificationRecord) (string, error)
	DeleteVerification(ctx context.Context, id string) error
	ListVerifications(ctx context.Context, tipID string) ([]*models.VerificationRecord, error)
	SubscribeVerifications(ctx context.Context, tipID string) (Subscription[*models.VerificationRecord], error)

	// User methods
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Comment methods
	CreateComment(ctx context.Context, comment *models.Comment) (string, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, tipID string) ([]*models.Comment, error)
}
