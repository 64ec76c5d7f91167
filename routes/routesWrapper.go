package routes

import (
	"github.com/julienschmidt/httprouter"
)

func RoutesWrapper(router *httprouter.Router, d Deps) {
	AddOpsRoutes(router, d)
	AddBookingRoutes(router, d)
	AddQueueRoutes(router, d)
	AddTrackingRoutes(router, d)
	AddNotificationRoutes(router, d)
	AddLiveRoutes(router, d)
}
