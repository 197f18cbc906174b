package repository

import (
	"context"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VehicleRepository is the persistence port for device control state.
type VehicleRepository interface {
	FindByIMEI(ctx context.Context, imei string) (*model.Vehicle, error)
	FindAll(ctx context.Context) ([]*model.Vehicle, error)
	Upsert(ctx context.Context, vehicle *model.Vehicle) error
	UpdateTelemetry(ctx context.Context, imei string, t VehicleTelemetry) error
	SetBlockCommand(ctx context.Context, imei string, block *bool) error
	SetConfirmedBlocked(ctx context.Context, imei string, blocked bool) error
	SetIPChangeCommand(ctx context.Context, imei string, pending bool) error
}

// VehicleTelemetry is the per-message mutable slice of the vehicle record.
// Control state (blockCommand, blocked, ipChangeCommand) is deliberately not
// representable here: telemetry writes must never be able to overwrite a
// command confirmation that landed between a read and a write.
type VehicleTelemetry struct {
	LastRawMessage string
	LastUpdate     time.Time
	LastLongitude  string // empty = no fix in this message, keep the old one
	LastLatitude   string
	Ignition       *bool // nil = message carried no ignition signal
}

type MongoVehicleRepository struct {
	collection *mongo.Collection
}

func NewMongoVehicleRepository(db *mongo.Database) *MongoVehicleRepository {
	return &MongoVehicleRepository{
		collection: db.Collection("vehicles"),
	}
}

func (r *MongoVehicleRepository) FindByIMEI(ctx context.Context, imei string) (*model.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var vehicle model.Vehicle
	err := r.collection.FindOne(ctx, bson.M{"imei": imei}).Decode(&vehicle)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *MongoVehicleRepository) FindAll(ctx context.Context) ([]*model.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var vehicles []*model.Vehicle
	if err = cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (r *MongoVehicleRepository) Upsert(ctx context.Context, vehicle *model.Vehicle) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"imei": vehicle.IMEI}, vehicle, opts)
	return err
}

func (r *MongoVehicleRepository) UpdateTelemetry(ctx context.Context, imei string, t VehicleTelemetry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"lastRawMessage": t.LastRawMessage,
		"lastUpdate":     t.LastUpdate,
	}
	if t.LastLongitude != "" {
		set["lastLongitude"] = t.LastLongitude
		set["lastLatitude"] = t.LastLatitude
	}
	if t.Ignition != nil {
		set["ignition"] = *t.Ignition
	}

	// First message from an unseen IMEI creates the record; the imei field
	// itself comes from the filter on insert.
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"imei": imei}, bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"id":        uuid.NewString(),
			"createdAt": t.LastUpdate,
		},
	}, opts)
	return err
}

func (r *MongoVehicleRepository) SetBlockCommand(ctx context.Context, imei string, block *bool) error {
	return r.set(ctx, imei, bson.M{"blockCommand": block})
}

func (r *MongoVehicleRepository) SetConfirmedBlocked(ctx context.Context, imei string, blocked bool) error {
	// Confirmation clears the desire in the same write so a crash between the
	// two cannot leave a command that re-fires forever.
	return r.set(ctx, imei, bson.M{"blocked": blocked, "blockCommand": nil})
}

func (r *MongoVehicleRepository) SetIPChangeCommand(ctx context.Context, imei string, pending bool) error {
	return r.set(ctx, imei, bson.M{"ipChangeCommand": pending})
}

func (r *MongoVehicleRepository) set(ctx context.Context, imei string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fields["lastUpdate"] = time.Now().UTC()
	_, err := r.collection.UpdateOne(ctx, bson.M{"imei": imei}, bson.M{"$set": fields})
	return err
}
