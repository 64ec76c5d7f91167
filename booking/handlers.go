package booking

import (
	"net/http"
	"strings"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	svc *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{svc: s}
}

// POST /api/bookings
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req CreateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	b, err := h.svc.Create(r.Context(), actor, req)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, b)
}

// GET /api/bookings/:id
func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	b, err := h.svc.Get(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, b)
}

// GET /api/bookings?status=a,b
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var statuses []models.BookingStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := models.BookingStatus(strings.TrimSpace(s))
			if !st.Valid() && st != models.StatusDelivered {
				utils.RespondWithAppError(w, apperr.BadRequest("unknown status %q", s))
				return
			}
			statuses = append(statuses, st)
		}
	}
	out, err := h.svc.List(r.Context(), actor, statuses)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	if out == nil {
		out = []models.Booking{}
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"bookings": out, "count": len(out)})
}
