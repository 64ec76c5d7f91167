package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/utils"

	"github.com/julienschmidt/httprouter"
)

type Lister interface {
	ForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error)
}

type Handler struct {
	inbox Lister
}

func NewHandler(inbox Lister) *Handler {
	return &Handler{inbox: inbox}
}

// List returns the caller's own notifications, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	limit, err := utils.QueryLimit(r, 50, 200)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := h.inbox.ForUser(ctx, actor.UserID, int64(limit))
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"notifications": items})
}
