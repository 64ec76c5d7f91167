package db

import (
	"context"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Bookings struct {
	coll *mongo.Collection
}

func (r *Bookings) Insert(ctx context.Context, b models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if b.Version == 0 {
		b.Version = 1
	}
	_, err := r.coll.InsertOne(ctx, b)
	return translate("insert booking", "booking", err)
}

func (r *Bookings) Get(ctx context.Context, id string) (models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var b models.Booking
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&b)
	return b, translate("get booking", "booking", err)
}

// Update applies patch only if the stored version still equals version.
// When nothing matches, a second read tells a missing booking apart from a
// stale write.
func (r *Bookings) Update(ctx context.Context, id string, version int64, patch models.BookingPatch) (models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"id": id}
	if version != models.AnyVersion {
		filter["version"] = version
	}
	update := bson.M{"$inc": bson.M{"version": 1}}
	if set := bookingSet(patch); len(set) > 0 {
		update["$set"] = set
	}

	var b models.Booking
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&b)
	if err == mongo.ErrNoDocuments && version != models.AnyVersion {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return models.Booking{}, getErr
		}
		return models.Booking{}, apperr.StaleWrite("booking")
	}
	return b, translate("update booking", "booking", err)
}

func bookingSet(p models.BookingPatch) bson.M {
	set := bson.M{}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.DriverID != nil {
		set["driverId"] = *p.DriverID
	}
	if p.ActualPickupTime != nil {
		set["actualPickupTime"] = *p.ActualPickupTime
	}
	if p.WashStartTime != nil {
		set["washStartTime"] = *p.WashStartTime
	}
	if p.WashCompleteTime != nil {
		set["washCompleteTime"] = *p.WashCompleteTime
	}
	if p.DeliveryTime != nil {
		set["deliveryTime"] = *p.DeliveryTime
	}
	if p.QueuePosition != nil {
		set["queuePosition"] = *p.QueuePosition
	}
	if p.EstimatedWaitTime != nil {
		set["estimatedWaitTime"] = *p.EstimatedWaitTime
	}
	if p.PickupPhoto != nil {
		set["pickupPhoto"] = *p.PickupPhoto
	}
	if !p.UpdatedAt.IsZero() {
		set["updatedAt"] = p.UpdatedAt
	}
	return set
}

func bookingFilter(f models.BookingFilter) bson.M {
	filter := bson.M{}
	if f.ClientID != "" {
		filter["clientId"] = f.ClientID
	}
	if f.DriverID != "" {
		filter["driverId"] = f.DriverID
	}
	if f.CarWashID != "" {
		filter["carWashId"] = f.CarWashID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	return filter
}

func (r *Bookings) List(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bookingFilter(f), opts)
	if err != nil {
		return nil, apperr.Persistence("list bookings", err)
	}
	var out []models.Booking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Persistence("decode bookings", err)
	}
	return out, nil
}
