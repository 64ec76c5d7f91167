// Package queue keeps the per-car-wash waiting line: position reservation,
// wait estimates, and the service start/complete steps that drive a booking
// through the wash bays.
package queue

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/metrics"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/google/uuid"
)

type BookingStore interface {
	Get(ctx context.Context, id string) (models.Booking, error)
	Update(ctx context.Context, id string, version int64, patch models.BookingPatch) (models.Booking, error)
}

// EntryStore persists queue entries. Insert must fail with apperr.Duplicate
// when another active entry already holds the position at that car-wash, and
// Update must fail with apperr.Conflict when the patch's From guard does not
// match.
type EntryStore interface {
	Insert(ctx context.Context, e models.QueueEntry) error
	Get(ctx context.Context, id string) (models.QueueEntry, error)
	ActiveEntries(ctx context.Context, carWashID string) ([]models.QueueEntry, error)
	ActiveByBooking(ctx context.Context, bookingID string) (models.QueueEntry, error)
	LatestByBooking(ctx context.Context, bookingID string) (models.QueueEntry, error)
	Update(ctx context.Context, id string, patch models.QueuePatch) (models.QueueEntry, error)
}

// Directory resolves catalogue durations and display summaries.
type Directory interface {
	ServiceDuration(ctx context.Context, serviceID string) (int, error)
	BookingSummaries(ctx context.Context, bookings []models.Booking) (map[string]models.BookingSummary, error)
}

// Transitioner moves a booking's status on behalf of an actor.
type Transitioner interface {
	Transition(ctx context.Context, actor models.Actor, bookingID string, requested models.BookingStatus) (models.Booking, error)
}

const maxInsertAttempts = 5

type Scheduler struct {
	bookings        BookingStore
	entries         EntryStore
	dir             Directory
	locker          Locker
	metrics         *metrics.Metrics
	now             func() time.Time
	defaultDuration int

	mu     sync.RWMutex
	status Transitioner
}

type Option func(*Scheduler)

func WithLocker(l Locker) Option {
	return func(s *Scheduler) { s.locker = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithDefaultDuration sets the minutes used when a booking's service has no
// catalogue duration.
func WithDefaultDuration(minutes int) Option {
	return func(s *Scheduler) { s.defaultDuration = minutes }
}

func NewScheduler(bookings BookingStore, entries EntryStore, dir Directory, opts ...Option) *Scheduler {
	s := &Scheduler{
		bookings:        bookings,
		entries:         entries,
		dir:             dir,
		now:             time.Now,
		defaultDuration: 30,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	return s
}

// AttachTransitioner wires the status authority used by StartService and
// CompleteService.
func (s *Scheduler) AttachTransitioner(t Transitioner) {
	s.mu.Lock()
	s.status = t
	s.mu.Unlock()
}

func (s *Scheduler) transitioner() Transitioner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// AddToQueue is the car-wash facing admission path.
func (s *Scheduler) AddToQueue(ctx context.Context, actor models.Actor, bookingID string, minutes int) (models.QueueEntry, error) {
	if minutes < 1 {
		return models.QueueEntry{}, apperr.BadRequest("serviceDurationMinutes must be at least 1")
	}
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return models.QueueEntry{}, apperr.Persistence("load booking", err)
	}
	if !ownsCarWash(actor, b.CarWashID) {
		return models.QueueEntry{}, apperr.Unauthorized()
	}
	if !atWash(b.Status) {
		return models.QueueEntry{}, apperr.InvalidTransition("booking is %s, not at the car wash", b.Status)
	}
	return s.Enqueue(ctx, b, minutes)
}

// Enqueue reserves the next position at the booking's car-wash. Position is
// one past the highest active position and the wait is the sum of all active
// durations, both read under the car-wash lock.
func (s *Scheduler) Enqueue(ctx context.Context, b models.Booking, minutes int) (models.QueueEntry, error) {
	if minutes < 1 {
		return models.QueueEntry{}, apperr.BadRequest("serviceDurationMinutes must be at least 1")
	}
	unlock, err := s.locker.Lock(ctx, "queue:"+b.CarWashID)
	if err != nil {
		return models.QueueEntry{}, apperr.Persistence("lock queue", err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		active, err := s.entries.ActiveEntries(ctx, b.CarWashID)
		if err != nil {
			return models.QueueEntry{}, apperr.Persistence("load queue", err)
		}
		position, wait := 1, 0
		for _, e := range active {
			if e.BookingID == b.ID {
				return models.QueueEntry{}, apperr.Conflict("booking is already queued at position %d", e.Position)
			}
			if e.Position >= position {
				position = e.Position + 1
			}
			wait += e.ServiceDurationMinutes
		}

		now := s.now()
		start := now.Add(time.Duration(wait) * time.Minute)
		entry := models.QueueEntry{
			ID:                      uuid.NewString(),
			CarWashID:               b.CarWashID,
			BookingID:               b.ID,
			Position:                position,
			ServiceDurationMinutes:  minutes,
			EstimatedStartTime:      start,
			EstimatedCompletionTime: start.Add(time.Duration(minutes) * time.Minute),
			Status:                  models.QueueWaiting,
			Active:                  true,
			CreatedAt:               now,
			UpdatedAt:               now,
		}
		err = s.entries.Insert(ctx, entry)
		if errors.Is(err, apperr.ErrDuplicate) && attempt < maxInsertAttempts {
			log.Printf("[QueueScheduler] position %d at %s taken, retrying", position, b.CarWashID)
			continue
		}
		if err != nil {
			return models.QueueEntry{}, apperr.Persistence("insert queue entry", err)
		}

		s.mirror(ctx, b.ID, position, wait, now)
		s.metrics.QueueAdmissions.WithLabelValues(b.CarWashID).Inc()
		s.metrics.QueueWaitMinutes.Observe(float64(wait))
		log.Printf("[QueueScheduler] booking %s queued at %s position %d (wait %dm)", b.ID, b.CarWashID, position, wait)
		return entry, nil
	}
}

// mirror copies the queue output onto the booking. The booking fields are a
// cache, so a failure is only logged.
func (s *Scheduler) mirror(ctx context.Context, bookingID string, position, wait int, now time.Time) {
	patch := models.BookingPatch{QueuePosition: &position, EstimatedWaitTime: &wait, UpdatedAt: now}
	if _, err := s.bookings.Update(ctx, bookingID, models.AnyVersion, patch); err != nil {
		log.Printf("[QueueScheduler] mirror queue position onto %s: %v", bookingID, err)
	}
}

// StartService moves a waiting entry to in_progress and brings the booking
// into the washing bay.
func (s *Scheduler) StartService(ctx context.Context, actor models.Actor, queueID string) (models.QueueEntry, error) {
	e, err := s.entryFor(ctx, actor, queueID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if e.Status != models.QueueWaiting {
		return models.QueueEntry{}, apperr.Conflict("queue entry is %s", e.Status)
	}
	if err := s.advanceBooking(ctx, actor, e.BookingID, models.StatusWashingBay); err != nil {
		return models.QueueEntry{}, err
	}
	now := s.now()
	inProgress := models.QueueInProgress
	return s.settle(ctx, queueID, models.QueuePatch{
		From:            []models.QueueStatus{models.QueueWaiting},
		Status:          &inProgress,
		ActualStartTime: &now,
		UpdatedAt:       now,
	})
}

// CompleteService finishes an entry and completes the booking's wash. A
// booking still waiting passes through the washing bay first.
func (s *Scheduler) CompleteService(ctx context.Context, actor models.Actor, queueID string) (models.QueueEntry, error) {
	e, err := s.entryFor(ctx, actor, queueID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if e.Status == models.QueueCompleted {
		return models.QueueEntry{}, apperr.Conflict("queue entry is %s", e.Status)
	}
	if err := s.advanceBooking(ctx, actor, e.BookingID, models.StatusWashCompleted); err != nil {
		return models.QueueEntry{}, err
	}
	done, err := s.settle(ctx, queueID, s.completion(e))
	if err != nil {
		return models.QueueEntry{}, err
	}
	s.mirror(ctx, e.BookingID, 0, 0, done.UpdatedAt)
	return done, nil
}

func (s *Scheduler) completion(e models.QueueEntry) models.QueuePatch {
	now := s.now()
	done := models.QueueCompleted
	p := models.QueuePatch{
		From:                 []models.QueueStatus{models.QueueWaiting, models.QueueInProgress},
		Status:               &done,
		ActualCompletionTime: &now,
		UpdatedAt:            now,
	}
	if e.ActualStartTime == nil {
		p.ActualStartTime = &now
	}
	return p
}

// settle applies patch, tolerating the status hook having already moved the
// entry to the same status.
func (s *Scheduler) settle(ctx context.Context, queueID string, patch models.QueuePatch) (models.QueueEntry, error) {
	e, err := s.entries.Update(ctx, queueID, patch)
	if err == nil {
		log.Printf("[QueueScheduler] entry %s is %s", queueID, e.Status)
		return e, nil
	}
	if errors.Is(err, apperr.ErrConflict) {
		if cur, gerr := s.entries.Get(ctx, queueID); gerr == nil && cur.Status == *patch.Status {
			return cur, nil
		}
	}
	return models.QueueEntry{}, apperr.Persistence("update queue entry", err)
}

// washPath is the bay sequence a queued booking follows.
var washPath = []models.BookingStatus{
	models.StatusWaitingBay, models.StatusWashingBay, models.StatusWashCompleted,
}

// stepsTo lists the transitions that take a booking from current to target
// along washPath. Drying is optional and counts as past the washing bay.
func stepsTo(current, target models.BookingStatus) []models.BookingStatus {
	var at int
	switch current {
	case models.StatusAtWash, models.StatusDeliveredToWash:
		at = -1
	case models.StatusWaitingBay:
		at = 0
	case models.StatusWashingBay, models.StatusDryingBay:
		at = 1
	default:
		return nil
	}
	for i, s := range washPath {
		if s == target && i > at {
			return washPath[at+1 : i+1]
		}
	}
	return nil
}

func (s *Scheduler) advanceBooking(ctx context.Context, actor models.Actor, bookingID string, target models.BookingStatus) error {
	t := s.transitioner()
	if t == nil {
		return nil
	}
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return apperr.Persistence("load booking", err)
	}
	for _, step := range stepsTo(b.Status, target) {
		if _, err := t.Transition(ctx, actor, bookingID, step); err != nil {
			return err
		}
	}
	return nil
}

// UpdateServiceDuration rewrites an entry's duration and its own completion
// estimate. Later entries keep their estimates until they are re-queued.
func (s *Scheduler) UpdateServiceDuration(ctx context.Context, actor models.Actor, queueID string, minutes int) (models.QueueEntry, error) {
	if minutes < 1 {
		return models.QueueEntry{}, apperr.BadRequest("durationMinutes must be at least 1")
	}
	e, err := s.entryFor(ctx, actor, queueID)
	if err != nil {
		return models.QueueEntry{}, err
	}
	if e.Status == models.QueueCompleted {
		return models.QueueEntry{}, apperr.Conflict("queue entry is %s", e.Status)
	}
	completion := e.EstimatedStartTime.Add(time.Duration(minutes) * time.Minute)
	updated, err := s.entries.Update(ctx, queueID, models.QueuePatch{
		From:                    []models.QueueStatus{models.QueueWaiting, models.QueueInProgress},
		ServiceDurationMinutes:  &minutes,
		EstimatedCompletionTime: &completion,
		UpdatedAt:               s.now(),
	})
	if err != nil {
		return models.QueueEntry{}, apperr.Persistence("update queue entry", err)
	}
	log.Printf("[QueueScheduler] entry %s duration set to %dm", queueID, minutes)
	return updated, nil
}

// GetQueue lists a car-wash's active entries by position with booking
// summaries attached.
func (s *Scheduler) GetQueue(ctx context.Context, actor models.Actor, carWashID string) ([]models.QueueItem, error) {
	if !ownsCarWash(actor, carWashID) {
		return nil, apperr.Unauthorized()
	}
	active, err := s.entries.ActiveEntries(ctx, carWashID)
	if err != nil {
		return nil, apperr.Persistence("load queue", err)
	}
	bookings := make([]models.Booking, 0, len(active))
	for _, e := range active {
		b, err := s.bookings.Get(ctx, e.BookingID)
		if err != nil {
			log.Printf("[QueueScheduler] entry %s references missing booking %s: %v", e.ID, e.BookingID, err)
			continue
		}
		bookings = append(bookings, b)
	}
	summaries, err := s.dir.BookingSummaries(ctx, bookings)
	if err != nil {
		return nil, apperr.Persistence("load booking summaries", err)
	}

	items := make([]models.QueueItem, 0, len(active))
	for _, e := range active {
		item := models.QueueItem{QueueEntry: e}
		if sum, ok := summaries[e.BookingID]; ok {
			item.Booking = &sum
		}
		items = append(items, item)
	}
	return items, nil
}

// GetBookingQueuePosition reports a booking's place in its car-wash queue.
// A booking that already left the queue reports its last entry with nothing
// ahead and no wait.
func (s *Scheduler) GetBookingQueuePosition(ctx context.Context, actor models.Actor, bookingID string) (models.QueuePosition, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return models.QueuePosition{}, apperr.Persistence("load booking", err)
	}
	if !actor.CanView(b) {
		return models.QueuePosition{}, apperr.Unauthorized()
	}
	e, err := s.entries.ActiveByBooking(ctx, bookingID)
	if errors.Is(err, apperr.ErrNotFound) {
		e, err = s.entries.LatestByBooking(ctx, bookingID)
		if err == nil {
			return models.QueuePosition{
				QueueID:                 e.ID,
				BookingID:               bookingID,
				CarWashID:               e.CarWashID,
				Position:                e.Position,
				EstimatedStartTime:      e.EstimatedStartTime,
				EstimatedCompletionTime: e.EstimatedCompletionTime,
				Status:                  e.Status,
			}, nil
		}
	}
	if err != nil {
		return models.QueuePosition{}, apperr.Persistence("load queue entry", err)
	}
	active, err := s.entries.ActiveEntries(ctx, e.CarWashID)
	if err != nil {
		return models.QueuePosition{}, apperr.Persistence("load queue", err)
	}
	ahead := 0
	for _, other := range active {
		if other.Position < e.Position {
			ahead++
		}
	}

	wait := 0
	if d := e.EstimatedStartTime.Sub(s.now()); d > 0 {
		wait = int(math.Ceil(d.Minutes()))
	}
	return models.QueuePosition{
		QueueID:                 e.ID,
		BookingID:               bookingID,
		CarWashID:               e.CarWashID,
		Position:                e.Position,
		Ahead:                   ahead,
		EstimatedWaitTime:       wait,
		EstimatedStartTime:      e.EstimatedStartTime,
		EstimatedCompletionTime: e.EstimatedCompletionTime,
		Status:                  e.Status,
	}, nil
}

// TicketFor returns an entry and its booking for ticket printing. The
// car-wash, an operator or the booking's client may print it.
func (s *Scheduler) TicketFor(ctx context.Context, actor models.Actor, queueID string) (models.QueueEntry, models.Booking, error) {
	e, err := s.entries.Get(ctx, queueID)
	if err != nil {
		return models.QueueEntry{}, models.Booking{}, apperr.Persistence("load queue entry", err)
	}
	b, err := s.bookings.Get(ctx, e.BookingID)
	if err != nil {
		return models.QueueEntry{}, models.Booking{}, apperr.Persistence("load booking", err)
	}
	if !ownsCarWash(actor, e.CarWashID) && !(actor.Role == models.RoleClient && b.ClientID == actor.UserID) {
		return models.QueueEntry{}, models.Booking{}, apperr.Unauthorized()
	}
	return e, b, nil
}

// OnStatusChanged keeps the queue in step with committed booking status
// changes. It never transitions bookings itself.
func (s *Scheduler) OnStatusChanged(ctx context.Context, b models.Booking, previous models.BookingStatus) {
	switch b.Status {
	case models.StatusWaitingBay:
		if _, err := s.entries.ActiveByBooking(ctx, b.ID); err == nil {
			return
		}
		minutes := s.durationFor(ctx, b.ServiceID)
		if _, err := s.Enqueue(ctx, b, minutes); err != nil && !errors.Is(err, apperr.ErrConflict) {
			log.Printf("[QueueScheduler] enqueue %s after %s: %v", b.ID, previous, err)
		}

	case models.StatusWashingBay:
		e, err := s.entries.ActiveByBooking(ctx, b.ID)
		if err != nil || e.Status != models.QueueWaiting {
			return
		}
		now := s.now()
		inProgress := models.QueueInProgress
		_, err = s.entries.Update(ctx, e.ID, models.QueuePatch{
			From:            []models.QueueStatus{models.QueueWaiting},
			Status:          &inProgress,
			ActualStartTime: &now,
			UpdatedAt:       now,
		})
		if err != nil && !errors.Is(err, apperr.ErrConflict) {
			log.Printf("[QueueScheduler] start entry %s: %v", e.ID, err)
		}

	case models.StatusWashCompleted, models.StatusDeliveredToClient, models.StatusCompleted,
		models.StatusCancelled, models.StatusDeclined:
		e, err := s.entries.ActiveByBooking(ctx, b.ID)
		if err != nil {
			return
		}
		if _, err := s.entries.Update(ctx, e.ID, s.completion(e)); err != nil && !errors.Is(err, apperr.ErrConflict) {
			log.Printf("[QueueScheduler] release entry %s: %v", e.ID, err)
			return
		}
		s.mirror(ctx, b.ID, 0, 0, s.now())
		log.Printf("[QueueScheduler] entry %s released (booking %s)", e.ID, b.Status)
	}
}

func (s *Scheduler) durationFor(ctx context.Context, serviceID string) int {
	if serviceID == "" || s.dir == nil {
		return s.defaultDuration
	}
	minutes, err := s.dir.ServiceDuration(ctx, serviceID)
	if err != nil || minutes < 1 {
		return s.defaultDuration
	}
	return minutes
}

// DurationFor exposes the catalogue lookup to admission paths outside the
// scheduler.
func (s *Scheduler) DurationFor(ctx context.Context, serviceID string) int {
	return s.durationFor(ctx, serviceID)
}

func (s *Scheduler) entryFor(ctx context.Context, actor models.Actor, queueID string) (models.QueueEntry, error) {
	e, err := s.entries.Get(ctx, queueID)
	if err != nil {
		return models.QueueEntry{}, apperr.Persistence("load queue entry", err)
	}
	if !ownsCarWash(actor, e.CarWashID) {
		return models.QueueEntry{}, apperr.Unauthorized()
	}
	return e, nil
}

func ownsCarWash(actor models.Actor, carWashID string) bool {
	return actor.Role.IsOperator() || (actor.Role == models.RoleCarWash && actor.UserID == carWashID)
}

func atWash(st models.BookingStatus) bool {
	for _, s := range models.AtWashStatuses {
		if st == s {
			return true
		}
	}
	return false
}
