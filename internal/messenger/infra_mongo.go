package messenger

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tuvshee555/Auto-reception/internal/ai"
	"github.com/Tuvshee555/Auto-reception/internal/booking"
)

const (
	messagesCollection = "messages"
	bookingsCollection = "bookings"
	settingsCollection = "settings"
)

type MongoRepo struct {
	messages *mongo.Collection
	bookings *mongo.Collection
	settings *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		messages: db.Collection(messagesCollection),
		bookings: db.Collection(bookingsCollection),
		settings: db.Collection(settingsCollection),
	}
}

// EnsureIndexes makes message ids unique; records without one are exempt.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = r.bookings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (r *MongoRepo) SaveMessage(ctx context.Context, msg *MessageRecord) error {
	_, err := r.messages.InsertOne(ctx, msg)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateMessage
	}
	return err
}

func (r *MongoRepo) SaveBooking(ctx context.Context, b *booking.Booking) error {
	_, err := r.bookings.InsertOne(ctx, b)
	return err
}

func (r *MongoRepo) GetSettings(ctx context.Context) (ai.BusinessSettings, error) {
	var s ai.BusinessSettings
	err := r.settings.FindOne(ctx, bson.D{}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ai.BusinessSettings{}, nil
	}
	return s, err
}
