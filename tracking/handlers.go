package tracking

import (
	"net/http"

	"github.com/MS0C54073/CarWashApp-sub000/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	throttle *Throttle
}

func NewHandler(t *Throttle) *Handler {
	return &Handler{throttle: t}
}

// POST /api/tracking/location
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var rep Report
	if err := utils.DecodeJSON(r, &rep); err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	loc, err := h.throttle.UpdateDriverLocation(r.Context(), actor, rep)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, loc)
}

// GET /api/tracking/driver/:driverId
func (h *Handler) DriverLocation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	loc, err := h.throttle.GetDriverLocation(r.Context(), actor, ps.ByName("driverId"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, loc)
}

// GET /api/tracking/booking/:bookingId
func (h *Handler) BookingLocation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	view, err := h.throttle.GetBookingLocation(r.Context(), actor, ps.ByName("bookingId"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

// GET /api/tracking/drivers/active
func (h *Handler) ActiveDrivers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	locs, err := h.throttle.GetActiveDriverLocations(r.Context(), actor)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"drivers": locs, "count": len(locs)})
}

// GET /api/tracking/carwash/:carWashId/arrival/:bookingId
func (h *Handler) ArrivalOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	m, err := h.throttle.ArrivalOrderMetrics(r.Context(), actor, ps.ByName("carWashId"), ps.ByName("bookingId"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, m)
}
