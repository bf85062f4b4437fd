package database

import (
	"context"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentDocument represents comment data in MongoDB
type CommentDocument struct {
	ID        string    `bson:"_id"`
	TipID     string    `bson:"tipId"`
	AuthorID  string    `bson:"authorId"`
	Content   string    `bson:"content"`
	CreatedAt time.Time `bson:"createdAt"`
	IsDeleted bool      `bson:"isDeleted"`
}

func documentToComment(doc *CommentDocument) *models.Comment {
	return &models.Comment{
		ID:        doc.ID,
		TipID:     doc.TipID,
		AuthorID:  doc.AuthorID,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
		IsDeleted: doc.IsDeleted,
	}
}

func (m *MongoDB) CreateComment(ctx context.Context, comment *models.Comment) (string, error) {
	doc := CommentDocument{
		ID:        comment.ID,
		TipID:     comment.TipID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	if _, err := m.Comments.InsertOne(ctx, doc); err != nil {
		return "", storeError("create comment", err)
	}
	utils.Log.WithField("commentID", doc.ID).Debug("Saved comment")
	return doc.ID, nil
}

// GetComment retrieves a comment by ID
func (m *MongoDB) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var doc CommentDocument
	err := m.Comments.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("comment", id)
	}
	if err != nil {
		return nil, storeError("get comment", err)
	}
	return documentToComment(&doc), nil
}

// DeleteComment soft-deletes a comment. The filter only matches live
// comments, so a second delete reports not found.
func (m *MongoDB) DeleteComment(ctx context.Context, id string) error {
	filter := bson.M{"_id": id, "isDeleted": false}
	result, err := m.Comments.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"isDeleted": true}})
	if err != nil {
		return storeError("delete comment", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("comment", id)
	}
	return nil
}

// ListComments returns the live comments on a tip, oldest first.
func (m *MongoDB) ListComments(ctx context.Context, tipID string) ([]*models.Comment, error) {
	filter := bson.M{"tipId": tipID, "isDeleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := m.Comments.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError("list comments", err)
	}
	defer cursor.Close(ctx)

	comments := make([]*models.Comment, 0)
	for cursor.Next(ctx) {
		var doc CommentDocument
		if err := cursor.Decode(&doc); err != nil {
			utils.Log.WithError(err).Warn("Error decoding comment document")
			continue
		}
		comments = append(comments, documentToComment(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, storeError("list comments", err)
	}
	return comments, nil
}
