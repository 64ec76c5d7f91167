package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/booking"
	"github.com/MS0C54073/CarWashApp-sub000/config"
	"github.com/MS0C54073/CarWashApp-sub000/db"
	"github.com/MS0C54073/CarWashApp-sub000/evidence"
	"github.com/MS0C54073/CarWashApp-sub000/live"
	"github.com/MS0C54073/CarWashApp-sub000/memstore"
	"github.com/MS0C54073/CarWashApp-sub000/metrics"
	"github.com/MS0C54073/CarWashApp-sub000/middleware"
	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/mq"
	"github.com/MS0C54073/CarWashApp-sub000/notify"
	"github.com/MS0C54073/CarWashApp-sub000/queue"
	"github.com/MS0C54073/CarWashApp-sub000/ratelim"
	"github.com/MS0C54073/CarWashApp-sub000/rdx"
	"github.com/MS0C54073/CarWashApp-sub000/routes"
	"github.com/MS0C54073/CarWashApp-sub000/status"
	"github.com/MS0C54073/CarWashApp-sub000/ticket"
	"github.com/MS0C54073/CarWashApp-sub000/tracking"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type bookingRepo interface {
	Insert(ctx context.Context, b models.Booking) error
	Get(ctx context.Context, id string) (models.Booking, error)
	Update(ctx context.Context, id string, version int64, patch models.BookingPatch) (models.Booking, error)
	List(ctx context.Context, f models.BookingFilter) ([]models.Booking, error)
}

type directoryRepo interface {
	queue.Directory
	tracking.DriverStore
	booking.Catalog
}

type inboxRepo interface {
	notify.Inbox
	notify.Lister
}

// stores is the persistence backend: MongoDB when configured, in-memory
// otherwise.
type stores struct {
	bookings  bookingRepo
	queue     queue.EntryStore
	locations tracking.SampleStore
	directory directoryRepo
	inbox     inboxRepo
	close     func(context.Context) error
}

func openStores(ctx context.Context, cfg config.MongoConfig) (stores, error) {
	if cfg.URI == "" {
		log.Println("[App] MONGO_URI not set; using in-memory store")
		m := memstore.New()
		return stores{
			bookings:  m.Bookings,
			queue:     m.Queue,
			locations: m.Locations,
			directory: m.Directory,
			inbox:     m.Inbox,
			close:     func(context.Context) error { return nil },
		}, nil
	}
	s, err := db.Connect(ctx, cfg)
	if err != nil {
		return stores{}, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		s.Close(ctx)
		return stores{}, err
	}
	return stores{
		bookings:  s.Bookings,
		queue:     s.Queue,
		locations: s.Locations,
		directory: s.Directory,
		inbox:     s.Inbox,
		close:     s.Close,
	}, nil
}

type app struct {
	handler http.Handler
	metrics *metrics.Metrics

	hub      *live.Hub
	gateway  *notify.Gateway
	throttle *tracking.Throttle
	limiters []*ratelim.RateLimiter
	redis    *redis.Client
	amqp     *mq.AMQPPublisher
	stores   stores

	cancel context.CancelFunc
}

func newApp(ctx context.Context, cfg config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*app, error) {
	st, err := openStores(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	bg, cancel := context.WithCancel(context.Background())
	m := metrics.New(reg)
	a := &app{stores: st, cancel: cancel, metrics: m}

	a.hub = live.NewHub()
	go a.hub.Run()

	var (
		events   mq.Multi
		sinks    = []notify.Sink{notify.InboxSink{Store: st.inbox}}
		locker   queue.Locker = queue.NewLocalLocker()
		locCache tracking.Cache
	)

	if cfg.Redis.Address != "" {
		a.redis = rdx.NewClient(cfg.Redis)
		if err := rdx.Ping(ctx, a.redis); err != nil {
			a.close(ctx)
			return nil, err
		}
		pub := mq.NewRedisPublisher(a.redis)
		events = append(events, pub)
		sinks = append(sinks, pub)
		locker = rdx.NewLocker(a.redis, 10*time.Second)
		locCache = rdx.NewLocationCache(a.redis, cfg.Tracking.CacheTTL)
		go mq.NewRelay(a.redis, a.hub, a.hub).Run(bg)
	} else {
		log.Println("[App] REDIS_ADDR not set; single-instance mode with local locks and cache")
		events = append(events, a.hub)
		sinks = append(sinks, a.hub)
		locCache = tracking.NewMemoryCache()
	}

	if cfg.AMQP.URL != "" {
		a.amqp, err = mq.DialAMQP(cfg.AMQP.URL)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		events = append(events, a.amqp)
	}

	a.gateway = notify.NewGateway(256, 4, m, sinks...)
	a.gateway.Start()

	authority := status.NewAuthority(st.bookings, a.gateway,
		status.WithPublisher(events), status.WithMetrics(m))
	scheduler := queue.NewScheduler(st.bookings, st.queue, st.directory,
		queue.WithLocker(locker), queue.WithMetrics(m),
		queue.WithDefaultDuration(cfg.Queue.DefaultServiceMinutes))
	authority.AttachQueue(scheduler)
	scheduler.AttachTransitioner(authority)

	a.throttle = tracking.NewThrottle(st.locations, st.directory, st.bookings, tracking.Settings{
		MinInterval:           cfg.Tracking.MinInterval,
		CacheTTL:              cfg.Tracking.CacheTTL,
		SweepInterval:         cfg.Tracking.SweepInterval,
		ActiveWindow:          cfg.Tracking.ActiveWindow,
		DefaultServiceMinutes: cfg.Queue.DefaultServiceMinutes,
	}, tracking.WithCache(locCache), tracking.WithPublisher(events), tracking.WithMetrics(m))
	a.throttle.Start()

	limiter := ratelim.NewRateLimiter(120, 20, 10*time.Minute)
	locationLimiter := ratelim.NewRateLimiter(60, 10, 10*time.Minute)
	a.limiters = []*ratelim.RateLimiter{limiter, locationLimiter}

	ticketSecret := cfg.Auth.TicketSecret
	if ticketSecret == "" {
		ticketSecret = cfg.Auth.JWTSecret
	}

	router := httprouter.New()
	routes.RoutesWrapper(router, routes.Deps{
		Auth:            middleware.NewAuth(cfg.Auth.JWTSecret),
		Limiter:         limiter,
		LocationLimiter: locationLimiter,
		Bookings:        booking.NewHandler(booking.NewService(st.bookings, st.directory, scheduler)),
		Status:          status.NewHandler(authority),
		Evidence:        evidence.NewHandler(evidence.NewPhotos(cfg.Uploads.Dir, st.bookings)),
		Queue:           queue.NewHandler(scheduler, ticket.NewPrinter(ticketSecret)),
		Tracking:        tracking.NewHandler(a.throttle),
		Notify:          notify.NewHandler(st.inbox),
		Live:            live.NewHandler(a.hub, st.bookings),
		Metrics:         promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	})
	a.handler = router
	return a, nil
}

// close stops background workers first so nothing writes to a closed store.
func (a *app) close(ctx context.Context) {
	a.cancel()
	if a.throttle != nil {
		a.throttle.Stop()
	}
	if a.gateway != nil {
		a.gateway.Stop()
	}
	for _, l := range a.limiters {
		l.Stop()
	}
	if a.hub != nil {
		a.hub.Stop()
	}
	if a.amqp != nil {
		a.amqp.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("[App] close redis: %v", err)
		}
	}
	if a.stores.close != nil {
		if err := a.stores.close(ctx); err != nil {
			log.Printf("[App] close store: %v", err)
		}
	}
}
