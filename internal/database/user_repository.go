package database

import (
	"context"

	"github.com/blanchy21/TipsterNew-sub000/internal/models"
	"github.com/blanchy21/TipsterNew-sub000/internal/utils"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserDocument represents the MongoDB schema for a user profile
type UserDocument struct {
	ID              string   `bson:"_id"`
	DisplayName     string   `bson:"displayName"`
	Handle          string   `bson:"handle"`
	Verified        bool     `bson:"verified"`
	Specializations []string `bson:"specializations"`
	Followers       int      `bson:"followers"`
	Following       int      `bson:"following"`
}

func documentToUser(doc *UserDocument) *models.User {
	return &models.User{
		ID:              doc.ID,
		DisplayName:     doc.DisplayName,
		Handle:          doc.Handle,
		Verified:        doc.Verified,
		Specializations: doc.Specializations,
		Followers:       doc.Followers,
		Following:       doc.Following,
	}
}

// SaveUser creates or updates a user profile
func (m *MongoDB) SaveUser(ctx context.Context, user *models.User) error {
	doc := UserDocument{
		ID:              user.ID,
		DisplayName:     user.DisplayName,
		Handle:          user.Handle,
		Verified:        user.Verified,
		Specializations: user.Specializations,
		Followers:       user.Followers,
		Following:       user.Following,
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.Users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": doc}, opts)
	return storeError("save user", err)
}

func (m *MongoDB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var doc UserDocument
	err := m.Users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("user", id)
	}
	if err != nil {
		return nil, storeError("get user", err)
	}
	return documentToUser(&doc), nil
}

func (m *MongoDB) ListUsers(ctx context.Context) ([]*models.User, error) {
	cursor, err := m.Users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, storeError("list users", err)
	}
	defer cursor.Close(ctx)

	users := make([]*models.User, 0)
	for cursor.Next(ctx) {
		var doc UserDocument
		if err := cursor.Decode(&doc); err != nil {
			utils.Log.WithError(err).Warn("Error decoding user document")
			continue
		}
		users = append(users, documentToUser(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}
