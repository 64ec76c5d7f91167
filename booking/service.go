// Package booking admits new bookings and serves role-scoped reads. Status
// changes after creation belong to package status.
package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/google/uuid"
)

type Store interface {
	Insert(ctx context.Context, b models.Booking) error
	Get(ctx context.Context, id string) (models.Booking, error)
	List(ctx context.Context, f models.BookingFilter) ([]models.Booking, error)
}

type Catalog interface {
	User(ctx context.Context, id string) (models.User, error)
	Vehicle(ctx context.Context, id string) (models.Vehicle, error)
	Service(ctx context.Context, id string) (models.Service, error)
}

// Admitter puts a drive-in booking straight into the car-wash queue.
type Admitter interface {
	Enqueue(ctx context.Context, b models.Booking, minutes int) (models.QueueEntry, error)
	DurationFor(ctx context.Context, serviceID string) int
}

type Service struct {
	store   Store
	catalog Catalog
	queue   Admitter
	now     func() time.Time
}

func NewService(store Store, catalog Catalog, queue Admitter) *Service {
	return &Service{store: store, catalog: catalog, queue: queue, now: time.Now}
}

type CreateRequest struct {
	ClientID       string             `json:"clientId,omitempty"` // operators only
	CarWashID      string             `json:"carWashId"`
	VehicleID      string             `json:"vehicleId"`
	ServiceID      string             `json:"serviceId"`
	BookingType    models.BookingType `json:"bookingType"`
	PickupLocation *models.Location   `json:"pickupLocation,omitempty"`
}

func (s *Service) Create(ctx context.Context, actor models.Actor, req CreateRequest) (models.Booking, error) {
	clientID := actor.UserID
	switch {
	case actor.Role == models.RoleClient:
		if req.ClientID != "" && req.ClientID != actor.UserID {
			return models.Booking{}, apperr.Unauthorized()
		}
	case actor.Role.IsOperator():
		if req.ClientID == "" {
			return models.Booking{}, apperr.BadRequest("clientId is required")
		}
		clientID = req.ClientID
	default:
		return models.Booking{}, apperr.Unauthorized()
	}

	if err := validate(req); err != nil {
		return models.Booking{}, err
	}

	washer, err := s.catalog.User(ctx, req.CarWashID)
	if err != nil || washer.Role != models.RoleCarWash {
		return models.Booking{}, apperr.BadRequest("unknown car wash %q", req.CarWashID)
	}
	vehicle, err := s.catalog.Vehicle(ctx, req.VehicleID)
	if err != nil || vehicle.OwnerID != clientID {
		return models.Booking{}, apperr.BadRequest("unknown vehicle %q", req.VehicleID)
	}
	svc, err := s.catalog.Service(ctx, req.ServiceID)
	if err != nil {
		return models.Booking{}, apperr.BadRequest("unknown service %q", req.ServiceID)
	}

	now := s.now()
	b := models.Booking{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		CarWashID:   req.CarWashID,
		VehicleID:   req.VehicleID,
		ServiceID:   req.ServiceID,
		BookingType: req.BookingType,
		Status:      models.StatusPending,
		TotalAmount: svc.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if req.BookingType == models.BookingPickupDelivery {
		b.PickupLocation = req.PickupLocation
	} else {
		b.Status = models.StatusWaitingBay
	}

	if err := s.store.Insert(ctx, b); err != nil {
		return models.Booking{}, apperr.Persistence("insert booking", err)
	}
	log.Printf("[Booking] %s created by %s (%s, %s)", b.ID, actor.UserID, b.BookingType, b.Status)

	if b.BookingType == models.BookingDriveIn {
		if _, err := s.queue.Enqueue(ctx, b, s.queue.DurationFor(ctx, b.ServiceID)); err != nil {
			// The booking stays in waiting_bay; the car wash can add it by hand.
			log.Printf("[Booking] admit drive-in %s: %v", b.ID, err)
		} else if fresh, err := s.store.Get(ctx, b.ID); err == nil {
			b = fresh
		}
	}
	return b, nil
}

func validate(req CreateRequest) error {
	if req.CarWashID == "" || req.VehicleID == "" || req.ServiceID == "" {
		return apperr.BadRequest("carWashId, vehicleId and serviceId are required")
	}
	if !req.BookingType.Valid() {
		return apperr.BadRequest("bookingType must be pickup_delivery or drive_in")
	}
	if req.BookingType == models.BookingPickupDelivery {
		if req.PickupLocation == nil {
			return apperr.BadRequest("pickupLocation is required for pickup_delivery")
		}
		if err := req.PickupLocation.Coordinates.Validate(); err != nil {
			return apperr.BadRequest("pickupLocation: %v", err)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (models.Booking, error) {
	b, err := s.store.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Booking{}, err
	}
	if err != nil {
		return models.Booking{}, apperr.Persistence("get booking", err)
	}
	if !actor.CanView(b) {
		return models.Booking{}, apperr.Unauthorized()
	}
	return b, nil
}

// List narrows the filter to what the actor may see.
func (s *Service) List(ctx context.Context, actor models.Actor, statuses []models.BookingStatus) ([]models.Booking, error) {
	f := models.BookingFilter{Statuses: statuses}
	switch actor.Role {
	case models.RoleClient:
		f.ClientID = actor.UserID
	case models.RoleDriver:
		f.DriverID = actor.UserID
	case models.RoleCarWash:
		f.CarWashID = actor.UserID
	case models.RoleAdmin, models.RoleSubAdmin:
	default:
		return nil, apperr.Unauthorized()
	}
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, apperr.Persistence("list bookings", err)
	}
	return out, nil
}
