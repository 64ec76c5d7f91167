package db

import (
	"context"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Locations stores every persisted position sample.
type Locations struct {
	coll *mongo.Collection
}

func (r *Locations) Insert(ctx context.Context, s models.LocationSample) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, s)
	return translate("insert location", "location", err)
}

func (r *Locations) Latest(ctx context.Context, driverID string) (models.LocationSample, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var s models.LocationSample
	err := r.coll.FindOne(ctx, bson.M{"userId": driverID},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})).Decode(&s)
	return s, translate("latest location", "location", err)
}

// Directory reads users, vehicles and services owned by other parts of the
// platform. Only the driver's last location is written here.
type Directory struct {
	users    *mongo.Collection
	vehicles *mongo.Collection
	services *mongo.Collection
}

func (d *Directory) User(ctx context.Context, id string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var u models.User
	err := d.users.FindOne(ctx, bson.M{"id": id}).Decode(&u)
	return u, translate("get user", "user", err)
}

func (d *Directory) Vehicle(ctx context.Context, id string) (models.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var v models.Vehicle
	err := d.vehicles.FindOne(ctx, bson.M{"id": id}).Decode(&v)
	return v, translate("get vehicle", "vehicle", err)
}

func (d *Directory) Service(ctx context.Context, id string) (models.Service, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var s models.Service
	err := d.services.FindOne(ctx, bson.M{"id": id}).Decode(&s)
	return s, translate("get service", "service", err)
}

func (d *Directory) ServiceDuration(ctx context.Context, serviceID string) (int, error) {
	s, err := d.Service(ctx, serviceID)
	if err != nil {
		return 0, err
	}
	return s.DurationMinutes, nil
}

func (d *Directory) CarWashLocation(ctx context.Context, carWashID string) (*models.Location, error) {
	u, err := d.User(ctx, carWashID)
	if err != nil {
		return nil, err
	}
	return u.Location, nil
}

func (d *Directory) LastLocation(ctx context.Context, driverID string) (*models.DriverLocation, error) {
	u, err := d.User(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return u.LastLocation, nil
}

func (d *Directory) SetLastLocation(ctx context.Context, driverID string, loc models.DriverLocation) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := d.users.UpdateOne(ctx,
		bson.M{"id": driverID},
		bson.M{
			"$set":         bson.M{"lastLocation": loc},
			"$setOnInsert": bson.M{"role": models.RoleDriver},
		},
		options.Update().SetUpsert(true))
	return translate("set last location", "user", err)
}

func (d *Directory) ActiveDrivers(ctx context.Context, since time.Time) ([]models.DriverLocation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := d.users.Find(ctx,
		bson.M{"role": models.RoleDriver, "lastLocation.updatedAt": bson.M{"$gte": since}},
		options.Find().SetSort(bson.D{{Key: "id", Value: 1}}).SetProjection(bson.M{"lastLocation": 1}))
	if err != nil {
		return nil, apperr.Persistence("active drivers", err)
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, apperr.Persistence("decode drivers", err)
	}
	out := make([]models.DriverLocation, 0, len(users))
	for _, u := range users {
		if u.LastLocation != nil {
			out = append(out, *u.LastLocation)
		}
	}
	return out, nil
}

// BookingSummaries joins client names and vehicle labels with two batched
// reads instead of one lookup per booking.
func (d *Directory) BookingSummaries(ctx context.Context, bookings []models.Booking) (map[string]models.BookingSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	clientIDs := make([]string, 0, len(bookings))
	vehicleIDs := make([]string, 0, len(bookings))
	for _, b := range bookings {
		clientIDs = append(clientIDs, b.ClientID)
		vehicleIDs = append(vehicleIDs, b.VehicleID)
	}

	names := map[string]string{}
	cursor, err := d.users.Find(ctx, bson.M{"id": bson.M{"$in": clientIDs}},
		options.Find().SetProjection(bson.M{"id": 1, "name": 1}))
	if err != nil {
		return nil, apperr.Persistence("summary users", err)
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, apperr.Persistence("decode users", err)
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}

	labels := map[string]string{}
	cursor, err = d.vehicles.Find(ctx, bson.M{"id": bson.M{"$in": vehicleIDs}})
	if err != nil {
		return nil, apperr.Persistence("summary vehicles", err)
	}
	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, apperr.Persistence("decode vehicles", err)
	}
	for _, v := range vehicles {
		labels[v.ID] = v.Label()
	}

	out := make(map[string]models.BookingSummary, len(bookings))
	for _, b := range bookings {
		out[b.ID] = models.BookingSummary{
			BookingID:    b.ID,
			Status:       b.Status,
			BookingType:  b.BookingType,
			ClientID:     b.ClientID,
			ClientName:   names[b.ClientID],
			VehicleID:    b.VehicleID,
			VehicleLabel: labels[b.VehicleID],
			ServiceID:    b.ServiceID,
		}
	}
	return out, nil
}

type Inbox struct {
	coll *mongo.Collection
}

func (r *Inbox) Insert(ctx context.Context, n models.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, n)
	return translate("insert notification", "notification", err)
}

// ForUser lists a user's notifications, newest first.
func (r *Inbox) ForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, apperr.Persistence("list notifications", err)
	}
	var out []models.Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Persistence("decode notifications", err)
	}
	return out, nil
}
