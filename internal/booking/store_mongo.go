package booking

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionsCollection = "booking_sessions"

// MongoStore keeps one document per sender; single-document updates give
// per-sender atomicity. A unique index on sender_id is created by
// EnsureIndexes.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(sessionsCollection)}
}

func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sender_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (m *MongoStore) Get(ctx context.Context, senderID string) (*Session, error) {
	var s Session
	err := m.coll.FindOne(ctx, bson.M{"sender_id": senderID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *MongoStore) Open(ctx context.Context, senderID string) (*Session, error) {
	update := bson.M{"$set": bson.M{
		"active":     true,
		"name":       "",
		"phone":      "",
		"date":       "",
		"time":       "",
		"updated_at": time.Now().UTC(),
	}}
	return m.findOneAndUpsert(ctx, senderID, update)
}

func (m *MongoStore) Upsert(ctx context.Context, senderID string, slots Slots) (*Session, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if slots.Name != "" {
		set["name"] = slots.Name
	}
	if slots.Phone != "" {
		set["phone"] = slots.Phone
	}
	if slots.Date != "" {
		set["date"] = slots.Date
	}
	if slots.Time != "" {
		set["time"] = slots.Time
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"active": true},
	}
	return m.findOneAndUpsert(ctx, senderID, update)
}

func (m *MongoStore) Close(ctx context.Context, senderID string) error {
	_, err := m.coll.UpdateOne(ctx,
		bson.M{"sender_id": senderID},
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC()}},
	)
	return err
}

func (m *MongoStore) findOneAndUpsert(ctx context.Context, senderID string, update bson.M) (*Session, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var s Session
	if err := m.coll.FindOneAndUpdate(ctx, bson.M{"sender_id": senderID}, update, opts).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
