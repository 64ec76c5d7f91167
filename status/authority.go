// Package status owns the booking status state machine: which role may move a
// booking to which status, the lifecycle timestamps each move stamps, and the
// side effects (queue, events, notifications) that follow a committed move.
package status

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/metrics"
	"github.com/MS0C54073/CarWashApp-sub000/models"
)

// BookingStore is the durable booking record. Update must fail with
// apperr.StaleWrite when version does not match the stored one.
type BookingStore interface {
	Get(ctx context.Context, id string) (models.Booking, error)
	Update(ctx context.Context, id string, version int64, patch models.BookingPatch) (models.Booking, error)
}

// Notifier delivers user-facing alerts. Errors are logged, never surfaced.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// QueueHook follows committed status changes so the car-wash queue tracks
// the booking.
type QueueHook interface {
	OnStatusChanged(ctx context.Context, b models.Booking, previous models.BookingStatus)
}

const maxWriteAttempts = 3

type Authority struct {
	store    BookingStore
	notifier Notifier
	events   Publisher
	metrics  *metrics.Metrics
	now      func() time.Time

	mu    sync.RWMutex
	queue QueueHook
}

type Option func(*Authority)

func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(a *Authority) { a.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authority) { a.metrics = m }
}

func NewAuthority(store BookingStore, notifier Notifier, opts ...Option) *Authority {
	a := &Authority{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = metrics.NewNop()
	}
	return a
}

// AttachQueue wires the queue scheduler. The scheduler itself transitions
// bookings through the authority, so it is attached after construction.
func (a *Authority) AttachQueue(h QueueHook) {
	a.mu.Lock()
	a.queue = h
	a.mu.Unlock()
}

// Transition validates and applies a requested status on behalf of actor.
// The first violated rule is returned; nothing is written in that case.
func (a *Authority) Transition(ctx context.Context, actor models.Actor, bookingID string, requested models.BookingStatus) (models.Booking, error) {
	updated, previous, err := a.apply(ctx, actor, bookingID, requested)
	if err != nil {
		a.metrics.TransitionRejections.WithLabelValues(string(actor.Role), apperr.KindOf(err).String()).Inc()
		log.Printf("[StatusAuthority] %s %s: %s -> %s rejected: %v", actor.Role, actor.UserID, bookingID, requested, err)
		return models.Booking{}, err
	}

	a.metrics.Transitions.WithLabelValues(string(actor.Role), string(updated.Status)).Inc()
	log.Printf("[StatusAuthority] booking %s: %s -> %s by %s %s", bookingID, previous, updated.Status, actor.Role, actor.UserID)
	a.afterCommit(ctx, actor, updated, previous)
	return updated, nil
}

// Cancel is Transition to cancelled.
func (a *Authority) Cancel(ctx context.Context, actor models.Actor, bookingID string) (models.Booking, error) {
	return a.Transition(ctx, actor, bookingID, models.StatusCancelled)
}

// Allowed lists the statuses actor may currently request for a booking.
func (a *Authority) Allowed(ctx context.Context, actor models.Actor, bookingID string) ([]models.BookingStatus, error) {
	b, err := a.store.Get(ctx, bookingID)
	if err != nil {
		return nil, apperr.Persistence("load booking", err)
	}
	if !actor.CanView(b) && !claimable(actor, b) {
		return nil, apperr.Unauthorized()
	}
	return AllowedTargets(actor.Role, b.Status), nil
}

func (a *Authority) apply(ctx context.Context, actor models.Actor, bookingID string, requested models.BookingStatus) (models.Booking, models.BookingStatus, error) {
	if !requested.Valid() {
		return models.Booking{}, "", apperr.BadRequest("unknown status %q", requested)
	}
	if requested == models.StatusCancelled && actor.Role != models.RoleClient && !actor.Role.IsOperator() {
		return models.Booking{}, "", apperr.Unauthorized()
	}
	r, ok := lookup(actor.Role, requested)
	if !ok {
		return models.Booking{}, "", apperr.InvalidTransition("role %s may not set status %s", actor.Role, requested)
	}

	for attempt := 1; ; attempt++ {
		b, err := a.store.Get(ctx, bookingID)
		if err != nil {
			return models.Booking{}, "", apperr.Persistence("load booking", err)
		}
		if err := authorize(actor, b, requested); err != nil {
			return models.Booking{}, "", err
		}
		if err := check(r, b, requested); err != nil {
			return models.Booking{}, "", err
		}

		now := a.now()
		stored := r.target(requested)
		patch := models.BookingPatch{Status: &stored, UpdatedAt: now}
		stampLifecycle(&patch, stored, b, now)
		if requested == models.StatusAccepted && claimable(actor, b) {
			patch.DriverID = &actor.UserID
		}

		updated, err := a.store.Update(ctx, bookingID, b.Version, patch)
		if err == nil {
			return updated, b.Status, nil
		}
		if errors.Is(err, apperr.ErrStaleWrite) && attempt < maxWriteAttempts {
			a.metrics.TransitionRetries.Inc()
			continue
		}
		return models.Booking{}, "", apperr.Persistence("update booking", err)
	}
}

// claimable reports whether b is an open offer a driver may answer. Accepting
// it assigns the driver; declining it leaves it unassigned.
func claimable(actor models.Actor, b models.Booking) bool {
	return actor.Role == models.RoleDriver && b.DriverID == "" && b.Status == models.StatusPending
}

func authorize(actor models.Actor, b models.Booking, requested models.BookingStatus) error {
	if actor.CanView(b) {
		return nil
	}
	if (requested == models.StatusAccepted || requested == models.StatusDeclined) && claimable(actor, b) {
		return nil
	}
	return apperr.Unauthorized()
}

func check(r rule, b models.Booking, requested models.BookingStatus) error {
	if r.cancel {
		if cancelTerminal[b.Status] {
			return apperr.Conflict("cannot cancel a booking that is %s", b.Status)
		}
		return nil
	}
	if r.precondition && !r.allowsFrom(b.Status) {
		return apperr.Precondition("%s requires status %s, booking is %s", requested, r.from[0], b.Status)
	}
	if r.target(requested) == b.Status {
		return apperr.InvalidTransition("booking is already %s", b.Status)
	}
	if !r.allowsFrom(b.Status) {
		return apperr.InvalidTransition("cannot move booking from %s to %s", b.Status, requested)
	}
	return nil
}

func (a *Authority) afterCommit(ctx context.Context, actor models.Actor, b models.Booking, previous models.BookingStatus) {
	a.mu.RLock()
	queue := a.queue
	a.mu.RUnlock()
	if queue != nil {
		queue.OnStatusChanged(ctx, b, previous)
	}

	if a.events != nil {
		ev := models.Event{
			Type:      models.EventStatus,
			BookingID: b.ID,
			DriverID:  b.DriverID,
			Payload: map[string]string{
				"status":   string(b.Status),
				"previous": string(previous),
				"role":     string(actor.Role),
			},
			At: a.now(),
		}
		if err := a.events.Publish(ctx, ev); err != nil {
			log.Printf("[StatusAuthority] publish status event for %s: %v", b.ID, err)
		}
	}

	if a.notifier == nil {
		return
	}
	for _, n := range notificationsFor(b, actor, a.now()) {
		if err := a.notifier.Notify(ctx, n); err != nil {
			log.Printf("[StatusAuthority] notify %s about %s: %v", n.UserID, b.ID, err)
		}
	}
}
