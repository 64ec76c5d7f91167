package status

import (
	"net/http"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	authority *Authority
}

func NewHandler(a *Authority) *Handler {
	return &Handler{authority: a}
}

type transitionRequest struct {
	Status models.BookingStatus `json:"status"`
}

// PUT /api/bookings/:id/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transitionRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	if req.Status == "" {
		utils.RespondWithAppError(w, apperr.BadRequest("status is required"))
		return
	}
	b, err := h.authority.Transition(r.Context(), actor, ps.ByName("id"), req.Status)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, b)
}

// POST /api/bookings/:id/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	b, err := h.authority.Cancel(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, b)
}

// GET /api/bookings/:id/transitions
func (h *Handler) Transitions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	allowed, err := h.authority.Allowed(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	if allowed == nil {
		allowed = []models.BookingStatus{}
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"bookingId": ps.ByName("id"), "allowed": allowed})
}
