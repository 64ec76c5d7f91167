// Package notify delivers user-facing notifications without blocking the
// caller: Notify only enqueues, and a small worker pool fans each
// notification out to every sink.
package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/metrics"
	"github.com/MS0C54073/CarWashApp-sub000/models"
)

var (
	ErrDropped = errors.New("notification buffer full")
	ErrStopped = errors.New("notification gateway stopped")
)

const deliverTimeout = 5 * time.Second

// Sink is one delivery channel (inbox, pub/sub, live socket).
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n models.Notification) error
}

type Gateway struct {
	sinks   []Sink
	workers int
	metrics *metrics.Metrics

	mu      sync.RWMutex
	queue   chan models.Notification
	stopped bool

	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewGateway(buffer, workers int, m *metrics.Metrics, sinks ...Sink) *Gateway {
	if buffer < 1 {
		buffer = 1
	}
	if workers < 1 {
		workers = 1
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Gateway{
		sinks:   sinks,
		workers: workers,
		metrics: m,
		queue:   make(chan models.Notification, buffer),
	}
}

// Notify enqueues n and returns immediately. A full buffer drops n.
func (g *Gateway) Notify(_ context.Context, n models.Notification) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.stopped {
		return ErrStopped
	}
	select {
	case g.queue <- n:
		return nil
	default:
		g.metrics.NotificationsDropped.Inc()
		log.Printf("[Notify] buffer full, dropped %s for %s", n.Kind, n.UserID)
		return ErrDropped
	}
}

func (g *Gateway) Start() {
	g.startOnce.Do(func() {
		for i := 0; i < g.workers; i++ {
			g.wg.Add(1)
			go g.work()
		}
	})
}

// Stop refuses new notifications, drains the buffer and waits for the
// workers.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	close(g.queue)
	g.mu.Unlock()

	g.Start()
	g.wg.Wait()
}

func (g *Gateway) work() {
	defer g.wg.Done()
	for n := range g.queue {
		g.deliver(n)
	}
}

func (g *Gateway) deliver(n models.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	ok := true
	for _, s := range g.sinks {
		if err := s.Deliver(ctx, n); err != nil {
			ok = false
			g.metrics.NotificationFailures.WithLabelValues(s.Name()).Inc()
			log.Printf("[Notify] %s delivery to %s failed: %v", s.Name(), n.UserID, err)
		}
	}
	if ok {
		g.metrics.NotificationsSent.Inc()
	}
}

// Inbox is the durable notification store.
type Inbox interface {
	Insert(ctx context.Context, n models.Notification) error
}

// InboxSink stores notifications so users can list them later.
type InboxSink struct {
	Store Inbox
}

func (s InboxSink) Name() string { return "inbox" }

func (s InboxSink) Deliver(ctx context.Context, n models.Notification) error {
	return s.Store.Insert(ctx, n)
}
