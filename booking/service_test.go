package booking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/globals"
	"github.com/MS0C54073/CarWashApp-sub000/memstore"
	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/queue"
)

var (
	client   = models.Actor{UserID: "c1", Role: models.RoleClient}
	operator = models.Actor{UserID: "op", Role: models.RoleAdmin}
	pickup   = &models.Location{Coordinates: models.Coordinates{Lat: -1.28, Lng: 36.82}}
)

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	store.Directory.PutUser(models.User{ID: "c1", Name: "Amina", Role: models.RoleClient})
	store.Directory.PutUser(models.User{ID: "w1", Name: "Sparkle", Role: models.RoleCarWash})
	store.Directory.PutVehicle(models.Vehicle{ID: "v1", OwnerID: "c1", Make: "Toyota"})
	store.Directory.PutService(models.Service{ID: "full", Price: 1500, DurationMinutes: 40})
	sched := queue.NewScheduler(store.Bookings, store.Queue, store.Directory)
	return NewService(store.Bookings, store.Directory, sched), store
}

func TestCreatePickupDelivery(t *testing.T) {
	svc, _ := newService(t)
	b, err := svc.Create(context.Background(), client, CreateRequest{
		CarWashID: "w1", VehicleID: "v1", ServiceID: "full",
		BookingType: models.BookingPickupDelivery, PickupLocation: pickup,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != models.StatusPending || b.ClientID != "c1" || b.TotalAmount != 1500 {
		t.Fatalf("booking = %+v", b)
	}
}

func TestCreateDriveInIsQueued(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, client, CreateRequest{
		CarWashID: "w1", VehicleID: "v1", ServiceID: "full", BookingType: models.BookingDriveIn,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != models.StatusWaitingBay || b.QueuePosition != 1 {
		t.Fatalf("booking = %+v", b)
	}
	e, err := store.Queue.ActiveByBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("queue entry: %v", err)
	}
	if e.ServiceDurationMinutes != 40 {
		t.Fatalf("duration = %d; want the service's 40", e.ServiceDurationMinutes)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	base := CreateRequest{CarWashID: "w1", VehicleID: "v1", ServiceID: "full", BookingType: models.BookingPickupDelivery, PickupLocation: pickup}

	tests := []struct {
		name  string
		actor models.Actor
		edit  func(*CreateRequest)
		want  error
	}{
		{"missing pickup", client, func(r *CreateRequest) { r.PickupLocation = nil }, apperr.ErrBadRequest},
		{"bad latitude", client, func(r *CreateRequest) {
			r.PickupLocation = &models.Location{Coordinates: models.Coordinates{Lat: 95}}
		}, apperr.ErrBadRequest},
		{"unknown type", client, func(r *CreateRequest) { r.BookingType = "valet" }, apperr.ErrBadRequest},
		{"foreign vehicle", operator, func(r *CreateRequest) { r.ClientID = "c2" }, apperr.ErrBadRequest},
		{"not a car wash", client, func(r *CreateRequest) { r.CarWashID = "c1" }, apperr.ErrBadRequest},
		{"client for someone else", client, func(r *CreateRequest) { r.ClientID = "c2" }, apperr.ErrUnauthorized},
		{"operator without client", operator, func(*CreateRequest) {}, apperr.ErrBadRequest},
		{"driver", models.Actor{UserID: "d1", Role: models.RoleDriver}, func(*CreateRequest) {}, apperr.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.edit(&req)
			if _, err := svc.Create(ctx, tt.actor, req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestGetAndListAreScoped(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	b, err := svc.Create(ctx, operator, CreateRequest{
		ClientID: "c1", CarWashID: "w1", VehicleID: "v1", ServiceID: "full",
		BookingType: models.BookingPickupDelivery, PickupLocation: pickup,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, client, b.ID); err != nil {
		t.Errorf("owner get: %v", err)
	}
	stranger := models.Actor{UserID: "c9", Role: models.RoleClient}
	if _, err := svc.Get(ctx, stranger, b.ID); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("stranger get: %v", err)
	}
	if _, err := svc.Get(ctx, client, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing get: %v", err)
	}

	mine, _ := svc.List(ctx, client, nil)
	theirs, _ := svc.List(ctx, stranger, nil)
	washer, _ := svc.List(ctx, models.Actor{UserID: "w1", Role: models.RoleCarWash}, []models.BookingStatus{models.StatusPending})
	done, _ := svc.List(ctx, operator, []models.BookingStatus{models.StatusCompleted})
	if len(mine) != 1 || len(theirs) != 0 || len(washer) != 1 || len(done) != 0 {
		t.Fatalf("list sizes = %d %d %d %d", len(mine), len(theirs), len(washer), len(done))
	}
}

func TestListHandlerRejectsUnknownStatus(t *testing.T) {
	svc, _ := newService(t)
	h := NewHandler(svc)
	r := httptest.NewRequest("GET", "/api/bookings?status=pending,bogus", strings.NewReader(""))
	ctx := context.WithValue(r.Context(), globals.UserIDKey, client.UserID)
	ctx = context.WithValue(ctx, globals.RoleKey, client.Role)
	rec := httptest.NewRecorder()
	h.List(rec, r.WithContext(ctx), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}
