package queue

import (
	"context"
	"net/http"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/ticket"
	"github.com/MS0C54073/CarWashApp-sub000/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	scheduler *Scheduler
	printer   *ticket.Printer
}

func NewHandler(s *Scheduler, p *ticket.Printer) *Handler {
	return &Handler{scheduler: s, printer: p}
}

type addRequest struct {
	BookingID              string `json:"bookingId"`
	ServiceDurationMinutes int    `json:"serviceDurationMinutes"`
}

type entryRequest struct {
	QueueID string `json:"queueId"`
}

type durationRequest struct {
	QueueID         string `json:"queueId"`
	DurationMinutes int    `json:"durationMinutes"`
}

func actorOrReject(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	}
	return actor, ok
}

// POST /api/queue
func (h *Handler) AddToQueue(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	var req addRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	if req.BookingID == "" {
		utils.RespondWithAppError(w, apperr.BadRequest("bookingId is required"))
		return
	}
	entry, err := h.scheduler.AddToQueue(r.Context(), actor, req.BookingID, req.ServiceDurationMinutes)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, entry)
}

// POST /api/queue/start
func (h *Handler) StartService(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.entryAction(w, r, h.scheduler.StartService)
}

// POST /api/queue/complete
func (h *Handler) CompleteService(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.entryAction(w, r, h.scheduler.CompleteService)
}

func (h *Handler) entryAction(w http.ResponseWriter, r *http.Request,
	act func(ctx context.Context, actor models.Actor, queueID string) (models.QueueEntry, error)) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	if req.QueueID == "" {
		utils.RespondWithAppError(w, apperr.BadRequest("queueId is required"))
		return
	}
	entry, err := act(r.Context(), actor, req.QueueID)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entry)
}

// PUT /api/queue/duration
func (h *Handler) UpdateServiceDuration(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	var req durationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	if req.QueueID == "" {
		utils.RespondWithAppError(w, apperr.BadRequest("queueId is required"))
		return
	}
	entry, err := h.scheduler.UpdateServiceDuration(r.Context(), actor, req.QueueID, req.DurationMinutes)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, entry)
}

// GET /api/queue/carwash/:carWashId
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	items, err := h.scheduler.GetQueue(r.Context(), actor, ps.ByName("carWashId"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"carWashId": ps.ByName("carWashId"), "queue": items})
}

// GET /api/queue/booking/:bookingId
func (h *Handler) GetBookingQueuePosition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	pos, err := h.scheduler.GetBookingQueuePosition(r.Context(), actor, ps.ByName("bookingId"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, pos)
}

// GET /api/queue/ticket/:queueId
func (h *Handler) PrintTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := actorOrReject(w, r)
	if !ok {
		return
	}
	entry, b, err := h.scheduler.TicketFor(r.Context(), actor, ps.ByName("queueId"))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	pdf, err := h.printer.Render(entry, b)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=queue-ticket-"+entry.ID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// POST /api/queue/ticket/verify
func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Payload string `json:"payload"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	claim, err := h.printer.Verify(req.Payload)
	if err != nil {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"valid": false, "reason": err.Error()})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"valid":     true,
		"queueId":   claim.QueueID,
		"bookingId": claim.BookingID,
		"position":  claim.Position,
	})
}
