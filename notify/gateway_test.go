package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/memstore"
	"github.com/MS0C54073/CarWashApp-sub000/metrics"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []string
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(_ context.Context, n models.Notification) error {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, n.ID)
	s.mu.Unlock()
	return nil
}

type brokenSink struct{}

func (brokenSink) Name() string { return "broken" }

func (brokenSink) Deliver(context.Context, models.Notification) error {
	return errors.New("smtp down")
}

func TestNotifyNeverBlocks(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sink := &blockingSink{release: make(chan struct{})}
	g := NewGateway(1, 1, m, sink)
	g.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			g.Notify(context.Background(), models.Notification{ID: string(rune('a' + i))})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a stalled sink")
	}

	if got := testutil.ToFloat64(m.NotificationsDropped); got < 3 {
		t.Fatalf("dropped = %v, want at least 3", got)
	}
	close(sink.release)
	g.Stop()
	if err := g.Notify(context.Background(), models.Notification{ID: "late"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("after stop: err = %v", err)
	}
}

func TestDeliversToEverySink(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	store := memstore.New()
	g := NewGateway(10, 2, m, InboxSink{Store: store.Inbox}, brokenSink{})
	g.Start()

	for _, id := range []string{"n1", "n2"} {
		if err := g.Notify(context.Background(), models.Notification{ID: id, UserID: "c1"}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	g.Stop()

	if got := len(store.Inbox.For("c1")); got != 2 {
		t.Fatalf("inbox = %d", got)
	}
	if got := testutil.ToFloat64(m.NotificationFailures.WithLabelValues("broken")); got != 2 {
		t.Fatalf("failures = %v", got)
	}
	if got := testutil.ToFloat64(m.NotificationsSent); got != 0 {
		t.Fatalf("sent = %v", got)
	}
}

func TestStopWithoutStartDrains(t *testing.T) {
	store := memstore.New()
	g := NewGateway(4, 1, nil, InboxSink{Store: store.Inbox})
	g.Notify(context.Background(), models.Notification{ID: "n1", UserID: "c1"})
	g.Stop()
	if got := len(store.Inbox.For("c1")); got != 1 {
		t.Fatalf("inbox = %d", got)
	}
}
