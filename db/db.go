// Package db is the MongoDB backend. Each repository mirrors the method set
// of its in-memory counterpart in memstore.
package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/config"
	"github.com/MS0C54073/CarWashApp-sub000/globals"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const opTimeout = 5 * time.Second

type Store struct {
	Client    *mongo.Client
	Bookings  *Bookings
	Queue     *Queue
	Locations *Locations
	Directory *Directory
	Inbox     *Inbox
}

// Connect dials MongoDB, checks the connection and wires the repositories.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Printf("[DB] connected to %s", cfg.Database)

	database := client.Database(cfg.Database)
	return &Store{
		Client:    client,
		Bookings:  &Bookings{coll: database.Collection(globals.BookingsCollection)},
		Queue:     &Queue{coll: database.Collection(globals.QueueCollection)},
		Locations: &Locations{coll: database.Collection(globals.LocationsCollection)},
		Directory: &Directory{
			users:    database.Collection(globals.UsersCollection),
			vehicles: database.Collection(globals.VehiclesCollection),
			services: database.Collection(globals.ServicesCollection),
		},
		Inbox: &Inbox{coll: database.Collection(globals.NotificationsCollection)},
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories rely on. The partial
// unique index on active queue positions is what turns a concurrent
// duplicate admission into a Duplicate error.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	plan := map[*mongo.Collection][]mongo.IndexModel{
		s.Bookings.coll: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "carWashId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "driverId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		s.Queue.coll: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{
				Keys: bson.D{{Key: "carWashId", Value: 1}, {Key: "position", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("active_position").
					SetPartialFilterExpression(bson.M{"active": true}),
			},
			{Keys: bson.D{{Key: "bookingId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		s.Locations.coll: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		s.Directory.users: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}, {Key: "lastLocation.updatedAt", Value: -1}}},
		},
		s.Inbox.coll: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, idx := range plan {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// translate maps driver errors onto application kinds.
func translate(op, what string, err error) error {
	switch {
	case err == nil:
		return nil
	case err == mongo.ErrNoDocuments:
		return apperr.NotFound(what)
	case mongo.IsDuplicateKeyError(err):
		return apperr.Duplicate(what)
	default:
		return apperr.Persistence(op, err)
	}
}
