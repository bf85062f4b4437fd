package database

import (
	"context"
	"time"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VerificationDocument represents a verification record in MongoDB
type VerificationDocument struct {
	ID          string    `bson:"_id"`
	TipID       string    `bson:"tipId"`
	AuthorID    string    `bson:"authorId"`
	ModeratorID string    `bson:"moderatorId"`
	Status      string    `bson:"status"`
	Note        string    `bson:"note,omitempty"`
	Odds        string    `bson:"odds,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
}

func (m *MongoDB) CreateVerification(ctx context.Context, rec *models.VerificationRecord) (string, error) {
	doc := VerificationDocument{
		ID:          rec.ID,
		TipID:       rec.TipID,
		AuthorID:    rec.AuthorID,
		ModeratorID: rec.ModeratorID,
		Status:      string(rec.Status),
		Note:        rec.Note,
		Odds:        rec.Odds,
		CreatedAt:   rec.CreatedAt,
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	if _, err := m.Verifications.InsertOne(ctx, doc); err != nil {
		return "", storeError("create verification", err)
	}
	return doc.ID, nil
}

func (m *MongoDB) DeleteVerification(ctx context.Context, id string) error {
	result, err := m.Verifications.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("delete verification", err)
	}
	if result.DeletedCount == 0 {
		return utils.NewNotFoundError("verification", id)
	}
	return nil
}

// ListVerifications returns records newest first.
func (m *MongoDB) ListVerifications(ctx context.Context, tipID string) ([]*models.VerificationRecord, error) {
	filter := bson.M{}
	if tipID != "" {
		filter["tipId"] = tipID
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: 1},
	})

	cursor, err := m.Verifications.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError("list verifications", err)
	}
	defer cursor.Close(ctx)

	records := make([]*models.VerificationRecord, 0)
	for cursor.Next(ctx) {
		var doc VerificationDocument
		if err := cursor.Decode(&doc); err != nil {
			utils.Log.WithError(err).Warn("Error decoding verification document")
			continue
		}
		records = append(records, &models.VerificationRecord{
			ID:          doc.ID,
			TipID:       doc.TipID,
			AuthorID:    doc.AuthorID,
			ModeratorID: doc.ModeratorID,
			Status:      models.TipStatus(doc.Status),
			Note:        doc.Note,
			Odds:        doc.Odds,
			CreatedAt:   doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, storeError("list verifications", err)
	}
	return records, nil
}

func (m *MongoDB) SubscribeVerifications(ctx context.Context, tipID string) (Subscription[*models.VerificationRecord], error) {
	return subscribe(ctx, m.Verifications.Name(), m.changes(m.Verifications), func(ctx context.Context) ([]*models.VerificationRecord, error) {
		return m.ListVerifications(ctx, tipID)
	}, m.pollInterval)
}
