// Package tracking accepts high-frequency driver position reports, persists
// at most one sample per key per minimum interval, and serves role-scoped
// location reads.
package tracking

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/metrics"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/google/uuid"
)

type SampleStore interface {
	Insert(ctx context.Context, s models.LocationSample) error
	Latest(ctx context.Context, driverID string) (models.LocationSample, error)
}

// DriverStore reads and writes the location fields kept on user records.
type DriverStore interface {
	SetLastLocation(ctx context.Context, driverID string, loc models.DriverLocation) error
	LastLocation(ctx context.Context, driverID string) (*models.DriverLocation, error)
	ActiveDrivers(ctx context.Context, since time.Time) ([]models.DriverLocation, error)
	CarWashLocation(ctx context.Context, carWashID string) (*models.Location, error)
	ServiceDuration(ctx context.Context, serviceID string) (int, error)
}

type BookingReader interface {
	Get(ctx context.Context, id string) (models.Booking, error)
	List(ctx context.Context, f models.BookingFilter) ([]models.Booking, error)
}

type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Settings struct {
	MinInterval           time.Duration
	CacheTTL              time.Duration
	SweepInterval         time.Duration
	ActiveWindow          time.Duration
	DefaultServiceMinutes int
}

func DefaultSettings() Settings {
	return Settings{
		MinInterval:           30 * time.Second,
		CacheTTL:              5 * time.Minute,
		SweepInterval:         time.Minute,
		ActiveWindow:          5 * time.Minute,
		DefaultServiceMinutes: 30,
	}
}

type Throttle struct {
	cache    Cache
	samples  SampleStore
	drivers  DriverStore
	bookings BookingReader
	events   Publisher
	metrics  *metrics.Metrics
	now      func() time.Time
	settings Settings

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

type Option func(*Throttle)

func WithCache(c Cache) Option {
	return func(t *Throttle) { t.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(t *Throttle) { t.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(t *Throttle) { t.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Throttle) { t.metrics = m }
}

func NewThrottle(samples SampleStore, drivers DriverStore, bookings BookingReader, settings Settings, opts ...Option) *Throttle {
	t := &Throttle{
		samples:  samples,
		drivers:  drivers,
		bookings: bookings,
		settings: settings,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.cache == nil {
		t.cache = NewMemoryCache()
	}
	if t.metrics == nil {
		t.metrics = metrics.NewNop()
	}
	return t
}

// Start runs the periodic cache sweep until Stop.
func (t *Throttle) Start() {
	t.startOnce.Do(func() {
		go t.sweepLoop()
	})
}

// Stop ends the sweep and waits for it to exit. Safe to call without Start.
func (t *Throttle) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	started := true
	t.startOnce.Do(func() { started = false })
	if started {
		<-t.done
	}
}

func (t *Throttle) sweepLoop() {
	defer close(t.done)
	ticker := time.NewTicker(t.settings.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Sweep(context.Background())
		case <-t.stop:
			return
		}
	}
}

// Sweep evicts cache entries older than the cache TTL.
func (t *Throttle) Sweep(ctx context.Context) {
	remaining, err := t.cache.Sweep(ctx, t.now().Add(-t.settings.CacheTTL))
	if err != nil {
		log.Printf("[LocationThrottle] sweep: %v", err)
		return
	}
	t.metrics.LocationCacheEntries.Set(float64(remaining))
}

// Report is one position update from a driver's device.
type Report struct {
	Coordinates *models.Coordinates   `json:"coordinates"`
	BookingID   string                `json:"bookingId,omitempty"`
	Accuracy    *float64              `json:"accuracy,omitempty"`
	Heading     *float64              `json:"heading,omitempty"`
	Speed       *float64              `json:"speed,omitempty"`
	Status      models.DriverActivity `json:"status"`
}

func throttleKey(driverID, bookingID string) string {
	if bookingID == "" {
		bookingID = "idle"
	}
	return driverID + ":" + bookingID
}

// UpdateDriverLocation caches every valid report and persists it when the
// key's minimum interval has elapsed. Persistence faults are logged and
// never returned.
func (t *Throttle) UpdateDriverLocation(ctx context.Context, actor models.Actor, rep Report) (models.DriverLocation, error) {
	if actor.Role != models.RoleDriver {
		return models.DriverLocation{}, apperr.Unauthorized()
	}
	if rep.Coordinates == nil {
		return models.DriverLocation{}, apperr.BadRequest("coordinates are required")
	}
	if err := rep.Coordinates.Validate(); err != nil {
		return models.DriverLocation{}, apperr.BadRequest("%v", err)
	}
	if rep.Status == "" {
		rep.Status = models.ActivityIdle
	}
	if !rep.Status.Valid() {
		return models.DriverLocation{}, apperr.BadRequest("unknown driver status %q", rep.Status)
	}
	if rep.BookingID != "" {
		b, err := t.bookings.Get(ctx, rep.BookingID)
		if err != nil {
			return models.DriverLocation{}, apperr.Persistence("load booking", err)
		}
		if b.DriverID != actor.UserID {
			return models.DriverLocation{}, apperr.Unauthorized()
		}
	}

	now := t.now()
	sample := models.LocationSample{
		ID:          uuid.NewString(),
		UserID:      actor.UserID,
		BookingID:   rep.BookingID,
		Coordinates: *rep.Coordinates,
		Accuracy:    rep.Accuracy,
		Heading:     rep.Heading,
		Speed:       rep.Speed,
		Status:      rep.Status,
		Timestamp:   now,
	}
	loc := sample.DriverLocation()
	key := throttleKey(actor.UserID, rep.BookingID)

	persist, err := t.cache.ClaimPersist(ctx, key, now, t.settings.MinInterval)
	if err != nil {
		log.Printf("[LocationThrottle] persist gate for %s: %v", key, err)
		persist = true
	}
	if persist {
		t.persist(ctx, key, sample, loc)
	} else {
		t.metrics.LocationReports.WithLabelValues("cached").Inc()
	}
	if err := t.cache.Put(ctx, key, loc); err != nil {
		log.Printf("[LocationThrottle] cache %s: %v", key, err)
	}

	if t.events != nil {
		ev := models.Event{Type: models.EventLocation, BookingID: rep.BookingID, DriverID: actor.UserID, Payload: loc, At: now}
		if err := t.events.Publish(ctx, ev); err != nil {
			log.Printf("[LocationThrottle] publish location for %s: %v", key, err)
		}
	}
	return loc, nil
}

func (t *Throttle) persist(ctx context.Context, key string, sample models.LocationSample, loc models.DriverLocation) {
	err := t.samples.Insert(ctx, sample)
	if err == nil {
		err = t.drivers.SetLastLocation(ctx, sample.UserID, loc)
	}
	if err != nil {
		t.metrics.LocationReports.WithLabelValues("failed").Inc()
		log.Printf("[LocationThrottle] persist %s: %v", key, err)
		if rerr := t.cache.ReleasePersist(ctx, key); rerr != nil {
			log.Printf("[LocationThrottle] release gate %s: %v", key, rerr)
		}
		return
	}
	t.metrics.LocationReports.WithLabelValues("persisted").Inc()
}

// GetDriverLocation returns the driver's last known location. Only the
// driver and operators may read it directly.
func (t *Throttle) GetDriverLocation(ctx context.Context, actor models.Actor, driverID string) (models.DriverLocation, error) {
	if !actor.Role.IsOperator() && actor.UserID != driverID {
		return models.DriverLocation{}, apperr.Unauthorized()
	}
	loc, err := t.driverLocation(ctx, driverID)
	if err != nil {
		return models.DriverLocation{}, err
	}
	return *loc, nil
}

// driverLocation prefers the denormalized field on the driver record and
// falls back to the newest persisted sample.
func (t *Throttle) driverLocation(ctx context.Context, driverID string) (*models.DriverLocation, error) {
	loc, err := t.drivers.LastLocation(ctx, driverID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Persistence("load driver", err)
	}
	if loc != nil {
		return loc, nil
	}
	sample, err := t.samples.Latest(ctx, driverID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("driver location")
	}
	if err != nil {
		return nil, apperr.Persistence("load location", err)
	}
	fallback := sample.DriverLocation()
	return &fallback, nil
}

// GetBookingLocation is the tracking view of one booking for any party that
// may see it.
func (t *Throttle) GetBookingLocation(ctx context.Context, actor models.Actor, bookingID string) (models.BookingLocation, error) {
	b, err := t.bookings.Get(ctx, bookingID)
	if err != nil {
		return models.BookingLocation{}, apperr.Persistence("load booking", err)
	}
	if !actor.CanView(b) {
		return models.BookingLocation{}, apperr.Unauthorized()
	}

	out := models.BookingLocation{
		BookingID:         b.ID,
		Status:            b.Status,
		Pickup:            b.PickupLocation,
		QueuePosition:     b.QueuePosition,
		EstimatedWaitTime: b.EstimatedWaitTime,
	}
	if site, err := t.drivers.CarWashLocation(ctx, b.CarWashID); err == nil {
		out.CarWash = site
	} else if !errors.Is(err, apperr.ErrNotFound) {
		log.Printf("[LocationThrottle] car wash %s location: %v", b.CarWashID, err)
	}

	if b.DriverID == "" {
		return out, nil
	}
	loc, err := t.driverLocation(ctx, b.DriverID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return models.BookingLocation{}, err
	}
	if cached, ok, cerr := t.cache.Get(ctx, throttleKey(b.DriverID, b.ID)); cerr == nil && ok {
		if loc == nil || cached.UpdatedAt.After(loc.UpdatedAt) {
			loc = &cached
		}
	}
	out.Driver = loc
	return out, nil
}

// GetActiveDriverLocations lists drivers that reported within the active
// window. Operators only.
func (t *Throttle) GetActiveDriverLocations(ctx context.Context, actor models.Actor) ([]models.DriverLocation, error) {
	if !actor.Role.IsOperator() {
		return nil, apperr.Unauthorized()
	}
	locs, err := t.drivers.ActiveDrivers(ctx, t.now().Add(-t.settings.ActiveWindow))
	if err != nil {
		return nil, apperr.Persistence("load active drivers", err)
	}
	if locs == nil {
		locs = []models.DriverLocation{}
	}
	return locs, nil
}

// ArrivalOrderMetrics ranks a booking among the car-wash's bookings still at
// the wash by creation time, with a wait estimate summed from the service
// durations of the bookings ahead. It does not consult queue entries.
func (t *Throttle) ArrivalOrderMetrics(ctx context.Context, actor models.Actor, carWashID, bookingID string) (models.ArrivalOrderMetrics, error) {
	if !actor.Role.IsOperator() && !(actor.Role == models.RoleCarWash && actor.UserID == carWashID) {
		return models.ArrivalOrderMetrics{}, apperr.Unauthorized()
	}
	active, err := t.bookings.List(ctx, models.BookingFilter{CarWashID: carWashID, Statuses: models.AtWashStatuses})
	if err != nil {
		return models.ArrivalOrderMetrics{}, apperr.Persistence("list bookings", err)
	}

	out := models.ArrivalOrderMetrics{CarWashID: carWashID, BookingID: bookingID, ActiveBookings: len(active)}
	for i, b := range active {
		if b.ID == bookingID {
			out.ArrivalRank = i + 1
			return out, nil
		}
		out.ArrivalOrderWaitMinutes += t.serviceMinutes(ctx, b.ServiceID)
	}
	return models.ArrivalOrderMetrics{}, apperr.NotFound("active booking")
}

func (t *Throttle) serviceMinutes(ctx context.Context, serviceID string) int {
	if serviceID != "" {
		if m, err := t.drivers.ServiceDuration(ctx, serviceID); err == nil && m > 0 {
			return m
		}
	}
	return t.settings.DefaultServiceMinutes
}
