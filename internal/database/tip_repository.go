// internal/database/tip_repository.go
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

// AuthorDocument is the author reference embedded in every tip.
type AuthorDocument struct {
	ID       string `bson:"id"`
	Name     string `bson:"name"`
	Handle   string `bson:"handle"`
	Avatar   string `bson:"avatar,omitempty"`
	Verified bool   `bson:"verified"`
}

// TipDocument represents the MongoDB schema for a tip.
type TipDocument struct {
	ID             string         `bson:"_id"`
	Author         AuthorDocument `bson:"author"`
	Sport          string         `bson:"sport"`
	Title          string         `bson:"title"`
	Content        string         `bson:"content"`
	Odds           string         `bson:"odds,omitempty"`
	Tags           []string       `bson:"tags"`
	CreatedAt      time.Time      `bson:"createdAt"`
	Likes          int            `bson:"likes"`
	LikedBy        []string       `bson:"likedBy"`
	Comments       int            `bson:"comments"`
	Views          int            `bson:"views"`
	Status         string         `bson:"status"`
	VerifiedAt     *time.Time     `bson:"verifiedAt,omitempty"`
	VerifiedBy     string         `bson:"verifiedBy,omitempty"`
	GameDate       *time.Time     `bson:"gameDate,omitempty"`
	IsGameFinished bool           `bson:"isGameFinished"`
	Revision       int            `bson:"revision"`
}

// TipToDocument converts a Tip model to a MongoDB document.
func TipToDocument(tip *models.Tip) *TipDocument {
	tags := tip.Tags
	if tags == nil {
		tags = []string{}
	}
	likedBy := tip.LikedBy
	if likedBy == nil {
		likedBy = []string{}
	}
	return &TipDocument{
		ID: tip.ID,
		Author: AuthorDocument{
			ID:       tip.Author.ID,
			Name:     tip.Author.Name,
			Handle:   tip.Author.Handle,
			Avatar:   tip.Author.Avatar,
			Verified: tip.Author.Verified,
		},
		Sport:          tip.Sport,
		Title:          tip.Title,
		Content:        tip.Content,
		Odds:           tip.Odds,
		Tags:           tags,
		CreatedAt:      tip.CreatedAt,
		Likes:          tip.Likes,
		LikedBy:        likedBy,
		Comments:       tip.Comments,
		Views:          tip.Views,
		Status:         string(tip.Status),
		VerifiedAt:     tip.VerifiedAt,
		VerifiedBy:     tip.VerifiedBy,
		GameDate:       tip.GameDate,
		IsGameFinished: tip.IsGameFinished,
		Revision:       tip.Revision,
	}
}

// DocumentToTip converts a MongoDB document to a Tip model.
func DocumentToTip(doc *TipDocument) *models.Tip {
	return &models.Tip{
		ID: doc.ID,
		Author: models.Author{
			ID:       doc.Author.ID,
			Name:     doc.Author.Name,
			Handle:   doc.Author.Handle,
			Avatar:   doc.Author.Avatar,
			Verified: doc.Author.Verified,
		},
		Sport:          doc.Sport,
		Title:          doc.Title,
		Content:        doc.Content,
		Odds:           doc.Odds,
		Tags:           doc.Tags,
		CreatedAt:      doc.CreatedAt,
		Likes:          doc.Likes,
		LikedBy:        doc.LikedBy,
		Comments:       doc.Comments,
		Views:          doc.Views,
		Status:         models.TipStatus(doc.Status),
		VerifiedAt:     doc.VerifiedAt,
		VerifiedBy:     doc.VerifiedBy,
		GameDate:       doc.GameDate,
		IsGameFinished: doc.IsGameFinished,
		Revision:       doc.Revision,
	}
}

// updateToSet translates a partial update into a $set document.
func updateToSet(u models.TipUpdate) bson.M {
	set := bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Content != nil {
		set["content"] = *u.Content
	}
	if u.Odds != nil {
		set["odds"] = *u.Odds
	}
	if u.Tags != nil {
		set["tags"] = models.NormalizeTags(u.Tags)
	}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.VerifiedAt != nil {
		set["verifiedAt"] = *u.VerifiedAt
	}
	if u.VerifiedBy != nil {
		set["verifiedBy"] = *u.VerifiedBy
	}
	if u.GameDate != nil {
		set["gameDate"] = *u.GameDate
	}
	if u.IsGameFinished != nil {
		set["isGameFinished"] = *u.IsGameFinished
	}
	return set
}

// CreateTip inserts a new tip, assigning an id when the caller left it empty.
func (m *MongoDB) CreateTip(ctx context.Context, tip *models.Tip) (string, error) {
	doc := TipToDocument(tip)
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	if _, err := m.Tips.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", utils.NewValidationError("tip already exists: " + doc.ID)
		}
		return "", storeError("create tip", err)
	}
	return doc.ID, nil
}

// GetTip retrieves a tip by its ID.
func (m *MongoDB) GetTip(ctx context.Context, id string) (*models.Tip, error) {
	var doc TipDocument
	err := m.Tips.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("tip", id)
	}
	if err != nil {
		return nil, storeError("get tip", err)
	}
	return DocumentToTip(&doc), nil
}

func (m *MongoDB) UpdateTip(ctx context.Context, id string, update models.TipUpdate) error {
	set := updateToSet(update)
	if len(set) == 0 {
		_, err := m.GetTip(ctx, id)
		return err
	}

	result, err := m.Tips.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return storeError("update tip", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("tip", id)
	}
	return nil
}

func (m *MongoDB) DeleteTip(ctx context.Context, id string) error {
	result, err := m.Tips.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storeError("delete tip", err)
	}
	if result.DeletedCount == 0 {
		return utils.NewNotFoundError("tip", id)
	}
	return nil
}

// ListTips returns tips newest first, ties broken by id.
func (m *MongoDB) ListTips(ctx context.Context, q TipQuery) ([]*models.Tip, error) {
	filter := bson.M{}
	if q.AuthorID != "" {
		filter["author.id"] = q.AuthorID
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: 1},
	})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := m.Tips.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeError("list tips", err)
	}
	defer cursor.Close(ctx)

	tips := make([]*models.Tip, 0)
	for cursor.Next(ctx) {
		var doc TipDocument
		if err := cursor.Decode(&doc); err != nil {
			utils.Log.WithError(err).Warn("Error decoding tip document")
			continue
		}
		tips = append(tips, DocumentToTip(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, storeError("list tips", err)
	}
	return tips, nil
}

// SubscribeTips delivers the current result set, then a fresh one after
// every change to the tips collection.
func (m *MongoDB) SubscribeTips(ctx context.Context, q TipQuery) (Subscription[*models.Tip], error) {
	return subscribe(ctx, m.Tips.Name(), m.changes(m.Tips), func(ctx context.Context) ([]*models.Tip, error) {
		return m.ListTips(ctx, q)
	}, m.pollInterval)
}

func (m *MongoDB) IncrementTipField(ctx context.Context, id string, field TipCounter, delta int) error {
	if !field.Valid() {
		return utils.NewValidationError("unknown counter: " + string(field))
	}
	update := bson.M{"$inc": bson.M{string(field): delta}}
	result, err := m.Tips.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return storeError("increment "+string(field), err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("tip", id)
	}
	return nil
}

// DecrementTipFieldClamped lowers a counter by one without going below zero,
// evaluated server side so concurrent decrements stay correct.
func (m *MongoDB) DecrementTipFieldClamped(ctx context.Context, id string, field TipCounter) error {
	if !field.Valid() {
		return utils.NewValidationError("unknown counter: " + string(field))
	}
	name := string(field)
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: name, Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$add", Value: bson.A{"$" + name, -1}}},
			}}}},
		}}},
	}
	result, err := m.Tips.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return storeError("decrement "+name, err)
	}
	if result.MatchedCount == 0 {
		return utils.NewNotFoundError("tip", id)
	}
	return nil
}

// SetLike moves likedBy and likes together in one conditional write. The
// filter only matches when the set disagrees with the requested state, so a
// repeated call is a no-op.
func (m *MongoDB) SetLike(ctx context.Context, tipID, userID string, liked bool) error {
	var filter, update bson.M
	if liked {
		filter = bson.M{"_id": tipID, "likedBy": bson.M{"$ne": userID}}
		update = bson.M{
			"$addToSet": bson.M{"likedBy": userID},
			"$inc":      bson.M{"likes": 1},
		}
	} else {
		filter = bson.M{"_id": tipID, "likedBy": userID}
		update = bson.M{
			"$pull": bson.M{"likedBy": userID},
			"$inc":  bson.M{"likes": -1},
		}
	}

	result, err := m.Tips.UpdateOne(ctx, filter, update)
	if err != nil {
		return storeError("set like", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	return m.ensureTipExists(ctx, tipID)
}

// ApplyVerification writes the verification fields only if nobody else has
// verified the tip since expectedRevision was read.
func (m *MongoDB) ApplyVerification(ctx context.Context, id string, update models.TipUpdate, expectedRevision int) error {
	filter := bson.M{"_id": id, "revision": expectedRevision}
	result, err := m.Tips.UpdateOne(ctx, filter, bson.M{
		"$set": updateToSet(update),
		"$inc": bson.M{"revision": 1},
	})
	if err != nil {
		return storeError("apply verification", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	if err := m.ensureTipExists(ctx, id); err != nil {
		return err
	}
	return utils.NewAppError(utils.ErrConflict, "tip was verified concurrently: "+id, nil)
}

func (m *MongoDB) ensureTipExists(ctx context.Context, id string) error {
	count, err := m.Tips.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return storeError("count tips", err)
	}
	if count == 0 {
		return utils.NewNotFoundError("tip", id)
	}
	return nil
}
