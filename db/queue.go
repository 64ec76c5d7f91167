package db

import (
	"context"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Queue struct {
	coll *mongo.Collection
}

// Insert relies on the active_position index: a concurrent admission that
// picked the same position fails with Duplicate and is retried upstream.
func (r *Queue) Insert(ctx context.Context, e models.QueueEntry) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	e.Active = e.Status != models.QueueCompleted
	_, err := r.coll.InsertOne(ctx, e)
	return translate("insert queue entry", "queue position", err)
}

func (r *Queue) Get(ctx context.Context, id string) (models.QueueEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var e models.QueueEntry
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&e)
	return e, translate("get queue entry", "queue entry", err)
}

func (r *Queue) ActiveEntries(ctx context.Context, carWashID string) ([]models.QueueEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	cursor, err := r.coll.Find(ctx,
		bson.M{"carWashId": carWashID, "active": true},
		options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, apperr.Persistence("list queue", err)
	}
	var out []models.QueueEntry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Persistence("decode queue", err)
	}
	return out, nil
}

func (r *Queue) ActiveByBooking(ctx context.Context, bookingID string) (models.QueueEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var e models.QueueEntry
	err := r.coll.FindOne(ctx, bson.M{"bookingId": bookingID, "active": true}).Decode(&e)
	return e, translate("get queue entry", "queue entry", err)
}

func (r *Queue) LatestByBooking(ctx context.Context, bookingID string) (models.QueueEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var e models.QueueEntry
	err := r.coll.FindOne(ctx, bson.M{"bookingId": bookingID},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&e)
	return e, translate("get queue entry", "queue entry", err)
}

// Update applies patch only while the entry is in one of patch.From.
func (r *Queue) Update(ctx context.Context, id string, patch models.QueuePatch) (models.QueueEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"id": id}
	if len(patch.From) > 0 {
		filter["status"] = bson.M{"$in": patch.From}
	}
	set := queueSet(patch)
	if len(set) == 0 {
		return r.Get(ctx, id)
	}

	var e models.QueueEntry
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&e)
	if err == mongo.ErrNoDocuments && len(patch.From) > 0 {
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return models.QueueEntry{}, getErr
		}
		return models.QueueEntry{}, apperr.Conflict("queue entry is %s", current.Status)
	}
	return e, translate("update queue entry", "queue entry", err)
}

func queueSet(p models.QueuePatch) bson.M {
	set := bson.M{}
	if p.Status != nil {
		set["status"] = *p.Status
		set["active"] = *p.Status != models.QueueCompleted
	}
	if p.ServiceDurationMinutes != nil {
		set["serviceDurationMinutes"] = *p.ServiceDurationMinutes
	}
	if p.EstimatedCompletionTime != nil {
		set["estimatedCompletionTime"] = *p.EstimatedCompletionTime
	}
	if p.ActualStartTime != nil {
		set["actualStartTime"] = *p.ActualStartTime
	}
	if p.ActualCompletionTime != nil {
		set["actualCompletionTime"] = *p.ActualCompletionTime
	}
	if !p.UpdatedAt.IsZero() {
		set["updatedAt"] = p.UpdatedAt
	}
	return set
}
