package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/memstore"
	"github.com/MS0C54073/CarWashApp-sub000/models"
)

var (
	t0     = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	driver = models.Actor{UserID: "d1", Role: models.RoleDriver}
	admin  = models.Actor{UserID: "a1", Role: models.RoleAdmin}
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newThrottle(t *testing.T, samples SampleStore) (*Throttle, *memstore.Store, *clock) {
	t.Helper()
	store := memstore.New()
	if samples == nil {
		samples = store.Locations
	}
	c := &clock{now: t0}
	th := NewThrottle(samples, store.Directory, store.Bookings, DefaultSettings(), WithClock(c.Now))
	err := store.Bookings.Insert(context.Background(), models.Booking{
		ID:             "b1",
		ClientID:       "c1",
		DriverID:       "d1",
		CarWashID:      "w1",
		Status:         models.StatusAccepted,
		PickupLocation: &models.Location{Coordinates: models.Coordinates{Lat: 1, Lng: 1}},
		CreatedAt:      t0,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return th, store, c
}

func report(lat, lng float64) Report {
	return Report{Coordinates: &models.Coordinates{Lat: lat, Lng: lng}, BookingID: "b1", Status: models.ActivityEnRoute}
}

func TestReportsWithinIntervalAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	th, store, c := newThrottle(t, nil)

	if _, err := th.UpdateDriverLocation(ctx, driver, report(10, 10)); err != nil {
		t.Fatalf("first report: %v", err)
	}
	c.now = t0.Add(10 * time.Second)
	if _, err := th.UpdateDriverLocation(ctx, driver, report(11, 11)); err != nil {
		t.Fatalf("second report: %v", err)
	}
	if n := store.Locations.Count("d1"); n != 1 {
		t.Fatalf("persisted samples = %d, want 1", n)
	}
	cached, ok, _ := th.cache.Get(ctx, "d1:b1")
	if !ok || cached.Coordinates.Lat != 11 {
		t.Fatalf("cache = %+v (%v)", cached, ok)
	}
	last, _ := store.Directory.LastLocation(ctx, "d1")
	if last == nil || last.Coordinates.Lat != 10 {
		t.Fatalf("last location = %+v", last)
	}

	c.now = t0.Add(31 * time.Second)
	if _, err := th.UpdateDriverLocation(ctx, driver, report(12, 12)); err != nil {
		t.Fatalf("third report: %v", err)
	}
	if n := store.Locations.Count("d1"); n != 2 {
		t.Fatalf("persisted samples = %d, want 2", n)
	}
}

func TestThrottleKeyedPerBooking(t *testing.T) {
	ctx := context.Background()
	th, store, _ := newThrottle(t, nil)

	th.UpdateDriverLocation(ctx, driver, report(10, 10))
	idle := Report{Coordinates: &models.Coordinates{Lat: 10, Lng: 10}}
	if _, err := th.UpdateDriverLocation(ctx, driver, idle); err != nil {
		t.Fatalf("idle report: %v", err)
	}
	if n := store.Locations.Count("d1"); n != 2 {
		t.Fatalf("persisted samples = %d, want 2", n)
	}
}

func TestInvalidReportsRejectedBeforeMutation(t *testing.T) {
	ctx := context.Background()
	th, store, _ := newThrottle(t, nil)

	cases := []struct {
		name  string
		actor models.Actor
		rep   Report
		want  error
	}{
		{"latitude", driver, report(91, 0), apperr.ErrBadRequest},
		{"longitude", driver, report(0, -180.5), apperr.ErrBadRequest},
		{"status", driver, Report{Coordinates: &models.Coordinates{}, Status: "flying"}, apperr.ErrBadRequest},
		{"missing coordinates", driver, Report{BookingID: "b1", Status: models.ActivityEnRoute}, apperr.ErrBadRequest},
		{"not a driver", models.Actor{UserID: "c1", Role: models.RoleClient}, report(1, 1), apperr.ErrUnauthorized},
		{"foreign booking", models.Actor{UserID: "d2", Role: models.RoleDriver}, report(1, 1), apperr.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := th.UpdateDriverLocation(ctx, tc.actor, tc.rep); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if n := store.Locations.Count("d1") + store.Locations.Count("d2"); n != 0 {
		t.Fatalf("persisted samples = %d", n)
	}
	if _, ok, _ := th.cache.Get(ctx, "d1:b1"); ok {
		t.Fatal("rejected report reached the cache")
	}
}

func TestReportWithoutCoordinatesIsRejected(t *testing.T) {
	ctx := context.Background()
	th, store, _ := newThrottle(t, nil)

	var rep Report
	if err := json.Unmarshal([]byte(`{"bookingId":"b1","status":"en_route"}`), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := th.UpdateDriverLocation(ctx, driver, rep); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("err = %v, want bad request", err)
	}
	if n := store.Locations.Count("d1"); n != 0 {
		t.Fatalf("persisted samples = %d", n)
	}

	var partial Report
	if err := json.Unmarshal([]byte(`{"coordinates":{"lat":5}}`), &partial); err == nil {
		t.Fatal("coordinates without lng decoded")
	}
}

type failingSamples struct {
	*memstore.Locations
	fail  bool
	tries int
}

func (f *failingSamples) Insert(ctx context.Context, s models.LocationSample) error {
	f.tries++
	if f.fail {
		return errors.New("mongo unavailable")
	}
	return f.Locations.Insert(ctx, s)
}

func TestPersistFailureIsSilentAndRetried(t *testing.T) {
	ctx := context.Background()
	samples := &failingSamples{Locations: &memstore.Locations{}, fail: true}
	th, _, c := newThrottle(t, samples)

	if _, err := th.UpdateDriverLocation(ctx, driver, report(10, 10)); err != nil {
		t.Fatalf("report surfaced persistence error: %v", err)
	}
	samples.fail = false
	c.now = t0.Add(5 * time.Second)
	th.UpdateDriverLocation(ctx, driver, report(11, 11))
	if samples.tries != 2 || samples.Count("d1") != 1 {
		t.Fatalf("tries = %d persisted = %d", samples.tries, samples.Count("d1"))
	}
}

func TestSweepEvictsStaleEntries(t *testing.T) {
	ctx := context.Background()
	th, _, c := newThrottle(t, nil)
	th.UpdateDriverLocation(ctx, driver, report(10, 10))

	c.now = t0.Add(4 * time.Minute)
	th.Sweep(ctx)
	if _, ok, _ := th.cache.Get(ctx, "d1:b1"); !ok {
		t.Fatal("fresh entry evicted")
	}
	c.now = t0.Add(6 * time.Minute)
	th.Sweep(ctx)
	if _, ok, _ := th.cache.Get(ctx, "d1:b1"); ok {
		t.Fatal("stale entry kept")
	}
}

func TestStartStop(t *testing.T) {
	th, _, _ := newThrottle(t, nil)
	th.Start()
	done := make(chan struct{})
	go func() {
		th.Stop()
		th.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	idle, _, _ := newThrottle(t, nil)
	idle.Stop()
}

func TestBookingLocationScope(t *testing.T) {
	ctx := context.Background()
	th, store, c := newThrottle(t, nil)
	store.Directory.PutUser(models.User{ID: "w1", Role: models.RoleCarWash, Location: &models.Location{Address: "Main St"}})

	th.UpdateDriverLocation(ctx, driver, report(10, 10))
	c.now = t0.Add(5 * time.Second)
	th.UpdateDriverLocation(ctx, driver, report(20, 20))

	allowed := []models.Actor{
		{UserID: "c1", Role: models.RoleClient},
		driver,
		{UserID: "w1", Role: models.RoleCarWash},
		{UserID: "s1", Role: models.RoleSubAdmin},
	}
	for _, actor := range allowed {
		view, err := th.GetBookingLocation(ctx, actor, "b1")
		if err != nil {
			t.Fatalf("%s: %v", actor.Role, err)
		}
		if view.Driver == nil || view.Driver.Coordinates.Lat != 20 {
			t.Fatalf("%s: driver = %+v, want the cached report", actor.Role, view.Driver)
		}
		if view.CarWash == nil || view.CarWash.Address != "Main St" || view.Pickup == nil {
			t.Fatalf("%s: view = %+v", actor.Role, view)
		}
	}

	denied := []models.Actor{
		{UserID: "c2", Role: models.RoleClient},
		{UserID: "d2", Role: models.RoleDriver},
		{UserID: "w2", Role: models.RoleCarWash},
	}
	for _, actor := range denied {
		if _, err := th.GetBookingLocation(ctx, actor, "b1"); !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("%s %s: err = %v", actor.Role, actor.UserID, err)
		}
	}
}

func TestDriverLocationFallsBackToLatestSample(t *testing.T) {
	ctx := context.Background()
	th, store, _ := newThrottle(t, nil)
	store.Locations.Insert(ctx, models.LocationSample{UserID: "d9", Coordinates: models.Coordinates{Lat: 5}, Timestamp: t0})
	store.Locations.Insert(ctx, models.LocationSample{UserID: "d9", Coordinates: models.Coordinates{Lat: 6}, Timestamp: t0.Add(time.Minute)})

	loc, err := th.GetDriverLocation(ctx, admin, "d9")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loc.Coordinates.Lat != 6 {
		t.Fatalf("loc = %+v", loc)
	}
	if _, err := th.GetDriverLocation(ctx, admin, "nobody"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown driver: err = %v", err)
	}
	if _, err := th.GetDriverLocation(ctx, driver, "d9"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("other driver: err = %v", err)
	}
}

func TestActiveDriverLocations(t *testing.T) {
	ctx := context.Background()
	th, store, c := newThrottle(t, nil)
	store.Directory.SetLastLocation(ctx, "old", models.DriverLocation{DriverID: "old", UpdatedAt: t0.Add(-10 * time.Minute)})
	th.UpdateDriverLocation(ctx, driver, report(1, 1))
	c.now = t0.Add(time.Minute)

	locs, err := th.GetActiveDriverLocations(ctx, admin)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(locs) != 1 || locs[0].DriverID != "d1" {
		t.Fatalf("active = %+v", locs)
	}
	if _, err := th.GetActiveDriverLocations(ctx, driver); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("driver: err = %v", err)
	}
}

func TestArrivalOrderMetrics(t *testing.T) {
	ctx := context.Background()
	th, store, _ := newThrottle(t, nil)
	store.Directory.PutService(models.Service{ID: "quick", DurationMinutes: 15})
	for i, id := range []string{"x1", "x2", "x3"} {
		svc := "quick"
		if i == 1 {
			svc = ""
		}
		store.Bookings.Insert(ctx, models.Booking{
			ID: id, ClientID: "c1", CarWashID: "w1", ServiceID: svc,
			Status: models.StatusWaitingBay, CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		})
	}

	m, err := th.ArrivalOrderMetrics(ctx, models.Actor{UserID: "w1", Role: models.RoleCarWash}, "w1", "x3")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.ArrivalRank != 3 || m.ActiveBookings != 3 || m.ArrivalOrderWaitMinutes != 45 {
		t.Fatalf("metrics = %+v", m)
	}
	if _, err := th.ArrivalOrderMetrics(ctx, admin, "w1", "b1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("inactive booking: err = %v", err)
	}
	if _, err := th.ArrivalOrderMetrics(ctx, models.Actor{UserID: "w2", Role: models.RoleCarWash}, "w1", "x1"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("foreign car wash: err = %v", err)
	}
}
