package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/memstore"
	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/status"
)

var (
	t0      = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	carwash = models.Actor{UserID: "w1", Role: models.RoleCarWash}
	client  = models.Actor{UserID: "c1", Role: models.RoleClient}
)

type fixture struct {
	store     *memstore.Store
	scheduler *Scheduler
	authority *status.Authority
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := func() time.Time { return t0 }
	store := memstore.New()
	s := NewScheduler(store.Bookings, store.Queue, store.Directory, WithClock(clock))
	a := status.NewAuthority(store.Bookings, nil, status.WithClock(clock))
	a.AttachQueue(s)
	s.AttachTransitioner(a)
	return fixture{store: store, scheduler: s, authority: a}
}

func (f fixture) booking(t *testing.T, id string, st models.BookingStatus) models.Booking {
	t.Helper()
	b := models.Booking{
		ID:          id,
		ClientID:    "c1",
		CarWashID:   "w1",
		ServiceID:   "svc",
		BookingType: models.BookingDriveIn,
		Status:      st,
		CreatedAt:   t0,
	}
	if err := f.store.Bookings.Insert(context.Background(), b); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	b, _ = f.store.Bookings.Get(context.Background(), id)
	return b
}

func TestQueueScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b1 := f.booking(t, "B1", models.StatusWaitingBay)
	f.booking(t, "B2", models.StatusWaitingBay)

	e1, err := f.scheduler.Enqueue(ctx, b1, 30)
	if err != nil {
		t.Fatalf("enqueue B1: %v", err)
	}
	if e1.Position != 1 || !e1.EstimatedStartTime.Equal(t0) {
		t.Fatalf("B1 entry = %+v", e1)
	}

	e2, err := f.scheduler.AddToQueue(ctx, carwash, "B2", 45)
	if err != nil {
		t.Fatalf("add B2: %v", err)
	}
	if e2.Position != 2 || !e2.EstimatedStartTime.Equal(t0.Add(30*time.Minute)) {
		t.Fatalf("B2 entry = %+v", e2)
	}
	if !e2.EstimatedCompletionTime.Equal(t0.Add(75 * time.Minute)) {
		t.Fatalf("B2 completion = %v", e2.EstimatedCompletionTime)
	}
	b2, _ := f.store.Bookings.Get(ctx, "B2")
	if b2.QueuePosition != 2 || b2.EstimatedWaitTime != 30 {
		t.Fatalf("B2 mirror = %d/%d", b2.QueuePosition, b2.EstimatedWaitTime)
	}

	done, err := f.scheduler.CompleteService(ctx, carwash, e1.ID)
	if err != nil {
		t.Fatalf("complete B1: %v", err)
	}
	if done.Status != models.QueueCompleted || done.ActualCompletionTime == nil {
		t.Fatalf("B1 entry after completion = %+v", done)
	}
	b1, _ = f.store.Bookings.Get(ctx, "B1")
	if b1.Status != models.StatusWashCompleted || b1.WashStartTime == nil || b1.WashCompleteTime == nil {
		t.Fatalf("B1 booking = %+v", b1)
	}

	after, _ := f.store.Queue.Get(ctx, e2.ID)
	if after.Position != 2 || !after.EstimatedStartTime.Equal(e2.EstimatedStartTime) || after.Status != models.QueueWaiting {
		t.Fatalf("B2 entry changed: %+v", after)
	}
	b2, _ = f.store.Bookings.Get(ctx, "B2")
	if b2.QueuePosition != 2 || b2.EstimatedWaitTime != 30 {
		t.Fatalf("B2 mirror changed: %d/%d", b2.QueuePosition, b2.EstimatedWaitTime)
	}
}

func TestConcurrentAdmissionsGetDistinctPositions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const n = 50

	var bookings []models.Booking
	for i := 0; i < n; i++ {
		bookings = append(bookings, f.booking(t, fmt.Sprintf("b%02d", i), models.StatusWaitingBay))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, b := range bookings {
		wg.Add(1)
		go func(b models.Booking) {
			defer wg.Done()
			if _, err := f.scheduler.Enqueue(ctx, b, 10); err != nil {
				errs <- err
			}
		}(b)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("enqueue: %v", err)
	}

	active, _ := f.store.Queue.ActiveEntries(ctx, "w1")
	if len(active) != n {
		t.Fatalf("active entries = %d", len(active))
	}
	for i, e := range active {
		if e.Position != i+1 {
			t.Fatalf("positions not contiguous: index %d has position %d", i, e.Position)
		}
		wantStart := t0.Add(time.Duration(i*10) * time.Minute)
		if !e.EstimatedStartTime.Equal(wantStart) {
			t.Fatalf("position %d starts %v, want %v", e.Position, e.EstimatedStartTime, wantStart)
		}
	}
}

func TestEnqueueTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	b := f.booking(t, "B1", models.StatusWaitingBay)
	if _, err := f.scheduler.Enqueue(ctx, b, 30); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := f.scheduler.Enqueue(ctx, b, 30); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second enqueue: err = %v", err)
	}
}

func TestAddToQueueValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.booking(t, "B1", models.StatusWaitingBay)
	f.booking(t, "P1", models.StatusPending)

	cases := []struct {
		name    string
		actor   models.Actor
		booking string
		minutes int
		want    error
	}{
		{"zero duration", carwash, "B1", 0, apperr.ErrBadRequest},
		{"negative duration", carwash, "B1", -5, apperr.ErrBadRequest},
		{"other car wash", models.Actor{UserID: "w2", Role: models.RoleCarWash}, "B1", 30, apperr.ErrUnauthorized},
		{"client", client, "B1", 30, apperr.ErrUnauthorized},
		{"not at the wash", carwash, "P1", 30, apperr.ErrInvalidTransition},
		{"missing booking", carwash, "nope", 30, apperr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.scheduler.AddToQueue(ctx, tc.actor, tc.booking, tc.minutes); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestUpdateServiceDurationDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e1, _ := f.scheduler.Enqueue(ctx, f.booking(t, "B1", models.StatusWaitingBay), 30)
	e2, _ := f.scheduler.Enqueue(ctx, f.booking(t, "B2", models.StatusWaitingBay), 45)

	if _, err := f.scheduler.UpdateServiceDuration(ctx, carwash, e1.ID, 0); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("zero minutes: err = %v", err)
	}

	updated, err := f.scheduler.UpdateServiceDuration(ctx, carwash, e1.ID, 60)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ServiceDurationMinutes != 60 || !updated.EstimatedCompletionTime.Equal(t0.Add(60*time.Minute)) {
		t.Fatalf("updated = %+v", updated)
	}

	later, _ := f.store.Queue.Get(ctx, e2.ID)
	if !later.EstimatedStartTime.Equal(e2.EstimatedStartTime) || !later.EstimatedCompletionTime.Equal(e2.EstimatedCompletionTime) {
		t.Fatalf("later entry recomputed: %+v", later)
	}
}

func TestStartService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e, _ := f.scheduler.Enqueue(ctx, f.booking(t, "B1", models.StatusWaitingBay), 30)

	started, err := f.scheduler.StartService(ctx, carwash, e.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != models.QueueInProgress || started.ActualStartTime == nil {
		t.Fatalf("entry = %+v", started)
	}
	b, _ := f.store.Bookings.Get(ctx, "B1")
	if b.Status != models.StatusWashingBay || b.WashStartTime == nil {
		t.Fatalf("booking = %+v", b)
	}

	if _, err := f.scheduler.StartService(ctx, carwash, e.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second start: err = %v", err)
	}
}

func TestStatusChangesDriveQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Directory.PutService(models.Service{ID: "svc", Name: "Full wash", DurationMinutes: 25})
	f.booking(t, "B1", models.StatusAtWash)

	if _, err := f.authority.Transition(ctx, carwash, "B1", models.StatusWaitingBay); err != nil {
		t.Fatalf("to waiting bay: %v", err)
	}
	e, err := f.store.Queue.ActiveByBooking(ctx, "B1")
	if err != nil {
		t.Fatalf("no entry after waiting_bay: %v", err)
	}
	if e.Position != 1 || e.ServiceDurationMinutes != 25 {
		t.Fatalf("entry = %+v", e)
	}

	if _, err := f.authority.Cancel(ctx, client, "B1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.store.Queue.ActiveByBooking(ctx, "B1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("entry still active after cancel: %v", err)
	}
	released, _ := f.store.Queue.Get(ctx, e.ID)
	if released.Status != models.QueueCompleted {
		t.Fatalf("released entry = %+v", released)
	}
}

func TestQueueReads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Directory.PutUser(models.User{ID: "c1", Name: "Ada", Role: models.RoleClient})
	f.scheduler.Enqueue(ctx, f.booking(t, "B1", models.StatusWaitingBay), 30)
	f.scheduler.Enqueue(ctx, f.booking(t, "B2", models.StatusWaitingBay), 20)

	items, err := f.scheduler.GetQueue(ctx, carwash, "w1")
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if len(items) != 2 || items[0].BookingID != "B1" || items[1].BookingID != "B2" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Booking == nil || items[0].Booking.ClientName != "Ada" {
		t.Fatalf("summary = %+v", items[0].Booking)
	}

	if _, err := f.scheduler.GetQueue(ctx, models.Actor{UserID: "w2", Role: models.RoleCarWash}, "w1"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("foreign car wash: err = %v", err)
	}

	pos, err := f.scheduler.GetBookingQueuePosition(ctx, client, "B2")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Position != 2 || pos.Ahead != 1 || pos.EstimatedWaitTime != 30 {
		t.Fatalf("position = %+v", pos)
	}

	stranger := models.Actor{UserID: "c9", Role: models.RoleClient}
	if _, err := f.scheduler.GetBookingQueuePosition(ctx, stranger, "B2"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("stranger: err = %v", err)
	}
}

func TestPositionAfterLeavingQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	e1, err := f.scheduler.Enqueue(ctx, f.booking(t, "B1", models.StatusWaitingBay), 30)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := f.scheduler.CompleteService(ctx, carwash, e1.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	pos, err := f.scheduler.GetBookingQueuePosition(ctx, client, "B1")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.QueueID != e1.ID || pos.Status != models.QueueCompleted || pos.Ahead != 0 || pos.EstimatedWaitTime != 0 {
		t.Fatalf("position = %+v", pos)
	}

	f.booking(t, "B9", models.StatusPending)
	if _, err := f.scheduler.GetBookingQueuePosition(ctx, client, "B9"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("never queued: err = %v", err)
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second lock: err = %v", err)
	}

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
	if len(l.slots) != 0 {
		t.Fatalf("idle keys kept: %d", len(l.slots))
	}
}
