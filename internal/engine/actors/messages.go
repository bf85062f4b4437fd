package actors

import (
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/feed"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/tips"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
)

// Session identifies the client session a feed message belongs to and the
// authenticated user behind it. An empty UserID is an anonymous session.
type Session struct {
	SessionID string
	UserID    string
	// KeepUser leaves the session's current user in place. Set by connections
	// that carry no credentials of their own, like an unauthenticated socket.
	KeepUser bool
}

func (s Session) session() Session { return s }

// sessionMessage is implemented by every message routed through the FeedSupervisor.
type sessionMessage interface {
	session() Session
}

// Message types for the per-session FeedActor
type (
	// GetFeedMsg asks for the visible feed derived with Config.
	// The reply is a *FeedResponse.
	GetFeedMsg struct {
		Session
		Config feed.Config
	}

	// PublishTipMsg creates a tip and prepends it to the session's feed.
	// The reply is the stored *models.Tip or an *utils.AppError.
	PublishTipMsg struct {
		Session
		Author  models.Author
		Request tips.NewTipRequest
	}

	// ToggleLikeMsg flips the session user's like on any stored tip. The reply
	// is a *LikeResponse, with RolledBack set when the store rejected the write,
	// or an *utils.AppError when the tip cannot be read.
	ToggleLikeMsg struct {
		Session
		TipID string
	}

	// ViewTipMsg records a view. The reply is sent before the write lands.
	ViewTipMsg struct {
		Session
		TipID string
	}

	// DeleteTipMsg deletes a tip owned by the session user.
	DeleteTipMsg struct {
		Session
		TipID string
	}

	// WatchVerificationsMsg opens a live verification history subscription
	// for TipID, owned by the session.
	WatchVerificationsMsg struct {
		Session
		TipID string
	}

	UnwatchVerificationsMsg struct {
		Session
		TipID string
	}

	// EndSessionMsg stops the session's actor and releases its subscriptions.
	EndSessionMsg struct {
		SessionID string
	}

	GetSessionCountMsg struct{}
)

// FeedResponse is the visible feed for one request. A non-empty Error means
// the subscription failed and Tips is empty.
type FeedResponse struct {
	Tips        []*models.Tip `json:"tips"`
	Total       int           `json:"total"`
	Provisional []string      `json:"provisional,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type LikeResponse struct {
	Tip   *models.Tip `json:"tip"`
	Liked bool        `json:"liked"`
	// Demo is set when no user is signed in and the change is local only.
	Demo bool `json:"demo,omitempty"`
	// RolledBack is set when the store rejected the write; Tip and Liked
	// describe the state the session reverted to.
	RolledBack bool `json:"rolledBack,omitempty"`
}

// Message types for the VerificationActor
type (
	VerifyTipMsg struct {
		TipID       string
		Status      string
		ModeratorID string
		Note        string
	}

	ListVerificationsMsg struct {
		TipID string
	}

	RepairVerificationsMsg struct{}

	repairOnStartMsg struct{}
)

type VerifyResponse struct {
	Tip    *models.Tip                `json:"tip"`
	Record *models.VerificationRecord `json:"record"`
}

// Message types for the CommentActor
type (
	CreateCommentMsg struct {
		TipID    string `json:"tipId"`
		AuthorID string `json:"authorId"`
		Content  string `json:"content"`
	}

	DeleteCommentMsg struct {
		CommentID string `json:"commentId"`
		UserID    string `json:"userId"`
	}

	GetCommentsForTipMsg struct {
		TipID string `json:"tipId"`
	}
)

// Internal results reported back to the FeedActor by store calls running
// off the actor's goroutine.
type (
	snapshotMsg struct {
		generation int
		tips       []*models.Tip
		err        error
	}

	historyMsg struct {
		tipID      string
		generation int
		records    []*models.VerificationRecord
		err        error
	}

	createResultMsg struct {
		tip     *models.Tip
		err     error
		replyTo *actor.PID
	}

	// likeResultMsg reports a like commit. Likes on tips outside the window
	// have no mutationID and carry the stored tip read before the commit.
	likeResultMsg struct {
		tipID      string
		mutationID string
		userID     string
		liked      bool
		stored     *models.Tip
		lookupErr  error
		err        error
		replyTo    *actor.PID
	}

	deleteResultMsg struct {
		tipID   string
		err     error
		replyTo *actor.PID
	}
)

// SessionListener receives every change to a session's visible state. The
// websocket hub implements it.
type SessionListener interface {
	FeedChanged(sessionID string, tips []*models.Tip, err error)
	HistoryChanged(sessionID, tipID string, records []*models.VerificationRecord, err error)
}

// FeedDeps are the collaborators shared by every FeedActor.
type FeedDeps struct {
	Store      database.Store
	Engagement *tips.Engagement
	PageSize   int
	Listener   SessionListener
	Metrics    *utils.MetricsCollector
	// OnTipsChanged runs after a tip by authorID is created or deleted.
	OnTipsChanged func(authorID string)
	// Now stamps new tips. Nil means time.Now.
	Now func() time.Time
}
