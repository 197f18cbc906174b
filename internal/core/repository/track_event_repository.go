package repository

import (
	"context"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TrackEventRepository is the append-only store of device reports.
type TrackEventRepository interface {
	Create(ctx context.Context, event *model.TrackEvent) error
	FindLatestByIMEI(ctx context.Context, imei string, limit int64) ([]*model.TrackEvent, error)
}

type MongoTrackEventRepository struct {
	collection *mongo.Collection
}

func NewMongoTrackEventRepository(db *mongo.Database) *MongoTrackEventRepository {
	return &MongoTrackEventRepository{
		collection: db.Collection("vehicle_data"),
	}
}

func (r *MongoTrackEventRepository) Create(ctx context.Context, event *model.TrackEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, event)
	return err
}

func (r *MongoTrackEventRepository) FindLatestByIMEI(ctx context.Context, imei string, limit int64) ([]*model.TrackEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	opts := options.Find().SetSort(bson.M{"serverTime": -1}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"imei": imei}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*model.TrackEvent
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
