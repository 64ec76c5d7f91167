// Package memstore keeps every record the booking core needs in process
// memory. It backs single-instance development runs (no MONGO_URI) and the
// test suites, and follows the same contracts as the Mongo repositories in
// package db.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"
)

type Store struct {
	Bookings  *Bookings
	Queue     *Queue
	Locations *Locations
	Directory *Directory
	Inbox     *Inbox
}

func New() *Store {
	return &Store{
		Bookings:  &Bookings{rows: map[string]models.Booking{}},
		Queue:     &Queue{rows: map[string]models.QueueEntry{}},
		Locations: &Locations{},
		Directory: &Directory{
			users:    map[string]models.User{},
			vehicles: map[string]models.Vehicle{},
			services: map[string]models.Service{},
		},
		Inbox: &Inbox{},
	}
}

// ---------- Bookings ----------

type Bookings struct {
	mu   sync.Mutex
	rows map[string]models.Booking
}

func (s *Bookings) Insert(_ context.Context, b models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[b.ID]; ok {
		return apperr.Duplicate("booking")
	}
	if b.Version == 0 {
		b.Version = 1
	}
	s.rows[b.ID] = b
	return nil
}

func (s *Bookings) Get(_ context.Context, id string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return models.Booking{}, apperr.NotFound("booking")
	}
	return b, nil
}

func (s *Bookings) Update(_ context.Context, id string, version int64, patch models.BookingPatch) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return models.Booking{}, apperr.NotFound("booking")
	}
	if version != models.AnyVersion && b.Version != version {
		return models.Booking{}, apperr.StaleWrite("booking")
	}
	patch.Apply(&b)
	b.Version++
	s.rows[id] = b
	return b, nil
}

func (s *Bookings) List(_ context.Context, f models.BookingFilter) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.rows {
		if matches(b, f) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func matches(b models.Booking, f models.BookingFilter) bool {
	if f.ClientID != "" && b.ClientID != f.ClientID {
		return false
	}
	if f.DriverID != "" && b.DriverID != f.DriverID {
		return false
	}
	if f.CarWashID != "" && b.CarWashID != f.CarWashID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

// ---------- Queue ----------

type Queue struct {
	mu   sync.Mutex
	rows map[string]models.QueueEntry
}

// Insert enforces the same uniqueness the Mongo partial index does: one
// active entry per (carWashId, position).
func (s *Queue) Insert(_ context.Context, e models.QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[e.ID]; ok {
		return apperr.Duplicate("queue entry")
	}
	if e.Active {
		for _, other := range s.rows {
			if other.Active && other.CarWashID == e.CarWashID && other.Position == e.Position {
				return apperr.Duplicate("queue position")
			}
		}
	}
	s.rows[e.ID] = e
	return nil
}

func (s *Queue) Get(_ context.Context, id string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return models.QueueEntry{}, apperr.NotFound("queue entry")
	}
	return e, nil
}

func (s *Queue) ActiveEntries(_ context.Context, carWashID string) ([]models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueueEntry
	for _, e := range s.rows {
		if e.Active && e.CarWashID == carWashID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Queue) ActiveByBooking(_ context.Context, bookingID string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.rows {
		if e.Active && e.BookingID == bookingID {
			return e, nil
		}
	}
	return models.QueueEntry{}, apperr.NotFound("queue entry")
}

// LatestByBooking returns the most recent entry for a booking, active or not.
func (s *Queue) LatestByBooking(_ context.Context, bookingID string) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		found  bool
		latest models.QueueEntry
	)
	for _, e := range s.rows {
		if e.BookingID != bookingID {
			continue
		}
		if !found || e.CreatedAt.After(latest.CreatedAt) {
			latest, found = e, true
		}
	}
	if !found {
		return models.QueueEntry{}, apperr.NotFound("queue entry")
	}
	return latest, nil
}

func (s *Queue) Update(_ context.Context, id string, patch models.QueuePatch) (models.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return models.QueueEntry{}, apperr.NotFound("queue entry")
	}
	if !patch.Allows(e.Status) {
		return models.QueueEntry{}, apperr.Conflict("queue entry is %s", e.Status)
	}
	patch.Apply(&e)
	s.rows[id] = e
	return e, nil
}

// ---------- Locations ----------

type Locations struct {
	mu      sync.Mutex
	samples []models.LocationSample
}

func (s *Locations) Insert(_ context.Context, sample models.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *Locations) Latest(_ context.Context, driverID string) (models.LocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		found  bool
		latest models.LocationSample
	)
	for _, sample := range s.samples {
		if sample.UserID != driverID {
			continue
		}
		if !found || sample.Timestamp.After(latest.Timestamp) {
			latest, found = sample, true
		}
	}
	if !found {
		return models.LocationSample{}, apperr.NotFound("location")
	}
	return latest, nil
}

// Count returns how many samples were persisted for a driver.
func (s *Locations) Count(driverID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sample := range s.samples {
		if sample.UserID == driverID {
			n++
		}
	}
	return n
}

// ---------- Directory (users, vehicles, services) ----------

type Directory struct {
	mu       sync.Mutex
	users    map[string]models.User
	vehicles map[string]models.Vehicle
	services map[string]models.Service
}

func (d *Directory) PutUser(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *Directory) PutVehicle(v models.Vehicle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vehicles[v.ID] = v
}

func (d *Directory) PutService(s models.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[s.ID] = s
}

func (d *Directory) User(_ context.Context, id string) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user")
	}
	return u, nil
}

func (d *Directory) Vehicle(_ context.Context, id string) (models.Vehicle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.vehicles[id]
	if !ok {
		return models.Vehicle{}, apperr.NotFound("vehicle")
	}
	return v, nil
}

func (d *Directory) Service(_ context.Context, id string) (models.Service, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.services[id]
	if !ok {
		return models.Service{}, apperr.NotFound("service")
	}
	return s, nil
}

// ServiceDuration returns the catalogue duration of a service in minutes.
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

// SetLastLocation updates the denormalized last-known location, creating a
// bare driver record if none exists.
func (d *Directory) SetLastLocation(_ context.Context, driverID string, loc models.DriverLocation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[driverID]
	if !ok {
		u = models.User{ID: driverID, Role: models.RoleDriver}
	}
	u.LastLocation = &loc
	d.users[driverID] = u
	return nil
}

func (d *Directory) ActiveDrivers(_ context.Context, since time.Time) ([]models.DriverLocation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []models.DriverLocation
	for _, u := range d.users {
		if u.Role != models.RoleDriver || u.LastLocation == nil {
			continue
		}
		if !u.LastLocation.UpdatedAt.Before(since) {
			out = append(out, *u.LastLocation)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

// BookingSummaries joins bookings with client names and vehicle labels.
func (d *Directory) BookingSummaries(ctx context.Context, bookings []models.Booking) (map[string]models.BookingSummary, error) {
	out := make(map[string]models.BookingSummary, len(bookings))
	for _, b := range bookings {
		sum := models.BookingSummary{
			BookingID:   b.ID,
			Status:      b.Status,
			BookingType: b.BookingType,
			ClientID:    b.ClientID,
			VehicleID:   b.VehicleID,
			ServiceID:   b.ServiceID,
		}
		if u, err := d.User(ctx, b.ClientID); err == nil {
			sum.ClientName = u.Name
		}
		if v, err := d.Vehicle(ctx, b.VehicleID); err == nil {
			sum.VehicleLabel = v.Label()
		}
		out[b.ID] = sum
	}
	return out, nil
}

// ---------- Inbox ----------

type Inbox struct {
	mu    sync.Mutex
	items []models.Notification
}

func (s *Inbox) Insert(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return nil
}

func (s *Inbox) For(userID string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// ForUser lists a user's notifications, newest first.
func (s *Inbox) ForUser(_ context.Context, userID string, limit int64) ([]models.Notification, error) {
	out := s.For(userID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
