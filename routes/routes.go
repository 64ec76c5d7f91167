package routes

import (
	"fmt"
	"net/http"

	"github.com/MS0C54073/CarWashApp-sub000/booking"
	"github.com/MS0C54073/CarWashApp-sub000/evidence"
	"github.com/MS0C54073/CarWashApp-sub000/live"
	"github.com/MS0C54073/CarWashApp-sub000/middleware"
	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/notify"
	"github.com/MS0C54073/CarWashApp-sub000/queue"
	"github.com/MS0C54073/CarWashApp-sub000/ratelim"
	"github.com/MS0C54073/CarWashApp-sub000/status"
	"github.com/MS0C54073/CarWashApp-sub000/tracking"

	"github.com/julienschmidt/httprouter"
)

// Deps carries the handlers and guards the routes are built from.
type Deps struct {
	Auth            *middleware.Auth
	Limiter         *ratelim.RateLimiter
	LocationLimiter *ratelim.RateLimiter

	Bookings *booking.Handler
	Status   *status.Handler
	Evidence *evidence.Handler
	Queue    *queue.Handler
	Tracking *tracking.Handler
	Notify   *notify.Handler
	Live     *live.Handler
	Metrics  http.Handler
}

var (
	operators     = []models.Role{models.RoleAdmin, models.RoleSubAdmin}
	queueManagers = append([]models.Role{models.RoleCarWash}, operators...)
	bookers       = append([]models.Role{models.RoleClient}, operators...)
)

// authed wraps h so the caller must be authenticated and hold one of roles.
// No roles means any authenticated caller.
func authed(d Deps, h httprouter.Handle, roles ...models.Role) httprouter.Handle {
	if len(roles) > 0 {
		h = middleware.RequireRoles(roles...)(h)
	}
	return d.Auth.Authenticate(h)
}

func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func AddOpsRoutes(router *httprouter.Router, d Deps) {
	router.GET("/health", Index)
	if d.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", d.Metrics)
	}
}

func AddBookingRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/bookings", authed(d, d.Limiter.Limit(d.Bookings.Create), bookers...))
	router.GET("/api/bookings", authed(d, d.Bookings.List))
	router.GET("/api/bookings/:id", authed(d, d.Bookings.Get))
	router.GET("/api/bookings/:id/transitions", authed(d, d.Status.Transitions))
	router.PUT("/api/bookings/:id/status", authed(d, d.Limiter.Limit(d.Status.UpdateStatus)))
	router.POST("/api/bookings/:id/cancel", authed(d, d.Limiter.Limit(d.Status.Cancel), bookers...))
	router.POST("/api/bookings/:id/pickup-photo", authed(d, d.Limiter.Limit(d.Evidence.UploadPickupPhoto), models.RoleDriver))
	router.GET("/api/bookings/:id/pickup-photo", authed(d, d.Evidence.PickupPhoto))
	router.GET("/api/bookings/:id/pickup-photo/thumb", authed(d, d.Evidence.PickupPhotoThumb))
}

func AddQueueRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/queue", authed(d, d.Limiter.Limit(d.Queue.AddToQueue), queueManagers...))
	router.POST("/api/queue/start", authed(d, d.Limiter.Limit(d.Queue.StartService), queueManagers...))
	router.POST("/api/queue/complete", authed(d, d.Limiter.Limit(d.Queue.CompleteService), queueManagers...))
	router.PUT("/api/queue/duration", authed(d, d.Limiter.Limit(d.Queue.UpdateServiceDuration), queueManagers...))
	router.GET("/api/queue/carwash/:carWashId", authed(d, d.Queue.GetQueue, queueManagers...))
	router.GET("/api/queue/booking/:bookingId", authed(d, d.Queue.GetBookingQueuePosition))
	router.GET("/api/queue/ticket/:queueId", authed(d, d.Queue.PrintTicket))
	router.POST("/api/queue/ticket/verify", authed(d, d.Queue.VerifyTicket, queueManagers...))
}

func AddTrackingRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/tracking/location", authed(d, d.LocationLimiter.Limit(d.Tracking.UpdateLocation), models.RoleDriver))
	router.GET("/api/tracking/driver/:driverId", authed(d, d.Tracking.DriverLocation))
	router.GET("/api/tracking/booking/:bookingId", authed(d, d.Tracking.BookingLocation))
	router.GET("/api/tracking/drivers/active", authed(d, d.Tracking.ActiveDrivers, operators...))
	router.GET("/api/tracking/carwash/:carWashId/arrival/:bookingId", authed(d, d.Tracking.ArrivalOrder, queueManagers...))
}

func AddNotificationRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/notifications", authed(d, d.Notify.List))
}

func AddLiveRoutes(router *httprouter.Router, d Deps) {
	router.GET("/ws/bookings/:id", authed(d, d.Live.Subscribe))
}
