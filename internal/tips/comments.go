package tips

import (
	"context"
	"strings"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/database"
	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/sirupsen/logrus"
)

const maxCommentLength = 2000

// CommentService creates and deletes comments and keeps the tip's cached
// comment counter in step. The counter is never recomputed from the comments.
type CommentService struct {
	store      database.Store
	engagement *Engagement
	now        func() time.Time
}

func NewCommentService(store database.Store, engagement *Engagement, now func() time.Time) *CommentService {
	if now == nil {
		now = time.Now
	}
	return &CommentService{store: store, engagement: engagement, now: now}
}

func (s *CommentService) Create(ctx context.Context, tipID, authorID, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	switch {
	case authorID == "":
		return nil, utils.NewUnauthorizedError("an authenticated author is required")
	case content == "":
		return nil, utils.NewValidationError("comment content is required")
	case len(content) > maxCommentLength:
		return nil, utils.NewValidationError("comment is too long")
	}

	if _, err := s.store.GetTip(ctx, tipID); err != nil {
		return nil, utils.AsStoreError("get tip", err)
	}

	comment := &models.Comment{
		TipID:     tipID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now(),
	}
	id, err := s.store.CreateComment(ctx, comment)
	if err != nil {
		return nil, utils.AsStoreError("create comment", err)
	}
	comment.ID = id

	if err := s.engagement.IncrementCommentCount(ctx, tipID); err != nil {
		// Without the counter bump the comment must not exist either.
		if delErr := s.store.DeleteComment(ctx, id); delErr != nil {
			utils.Log.WithFields(logrus.Fields{
				"commentID": id,
				"tipID":     tipID,
				"error":     delErr,
			}).Error("Failed to remove comment after counter update failed")
		}
		return nil, err
	}
	return comment, nil
}

// Delete soft-deletes a comment written by userID and decrements the counter.
// A comment can only be deleted once, so the counter never double-decrements.
func (s *CommentService) Delete(ctx context.Context, commentID, userID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return utils.AsStoreError("get comment", err)
	}
	if comment.IsDeleted {
		return utils.NewNotFoundError("comment", commentID)
	}
	if comment.AuthorID != userID {
		return utils.NewAppError(utils.ErrForbidden, "only the author can delete this comment", nil)
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return utils.AsStoreError("delete comment", err)
	}
	if err := s.engagement.DecrementCommentCount(ctx, comment.TipID); err != nil {
		utils.Log.WithFields(logrus.Fields{
			"commentID": commentID,
			"tipID":     comment.TipID,
			"error":     err,
		}).Error("Comment deleted but counter decrement failed")
		return err
	}
	return nil
}

func (s *CommentService) List(ctx context.Context, tipID string) ([]*models.Comment, error) {
	comments, err := s.store.ListComments(ctx, tipID)
	if err != nil {
		return nil, utils.AsStoreError("list comments", err)
	}
	return comments, nil
}
