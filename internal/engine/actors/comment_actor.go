package actors

import (
	stdctx "context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/tips"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/sirupsen/logrus"
)

// CommentActor handles comment operations and the tip comment counter.
type CommentActor struct {
	comments *tips.CommentService
	metrics  *utils.MetricsCollector
}

func NewCommentActor(comments *tips.CommentService, metrics *utils.MetricsCollector) actor.Actor {
	return &CommentActor{
		comments: comments,
		metrics:  metrics,
	}
}

func (a *CommentActor) Receive(context actor.Context) {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
	defer cancel()

	switch msg := context.Message().(type) {
	case *actor.Started:
		utils.Log.Info("Comment actor started")

	case *CreateCommentMsg:
		start := time.Now()
		comment, err := a.comments.Create(ctx, msg.TipID, msg.AuthorID, msg.Content)
		a.observe("create_comment", start)
		if err != nil {
			context.Respond(utils.ToAppError(err))
			return
		}
		utils.Log.WithFields(logrus.Fields{
			"commentID": comment.ID,
			"tipID":     comment.TipID,
		}).Debug("Comment created")
		context.Respond(comment)

	case *DeleteCommentMsg:
		start := time.Now()
		err := a.comments.Delete(ctx, msg.CommentID, msg.UserID)
		a.observe("delete_comment", start)
		if err != nil {
			context.Respond(utils.ToAppError(err))
			return
		}
		context.Respond(&models.StatusResponse{Success: true, Message: "comment deleted"})

	case *GetCommentsForTipMsg:
		comments, err := a.comments.List(ctx, msg.TipID)
		if err != nil {
			context.Respond(utils.ToAppError(err))
			return
		}
		context.Respond(comments)
	}
}

func (a *CommentActor) observe(op string, start time.Time) {
	if a.metrics != nil {
		a.metrics.AddOperationLatency(op, time.Since(start))
	}
}
