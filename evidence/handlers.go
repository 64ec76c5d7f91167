package evidence

import (
	"net/http"

	"github.com/MS0C54073/CarWashApp-sub000/utils"

	"github.com/julienschmidt/httprouter"
)

const maxUpload = 10 << 20

type Handler struct {
	photos *Photos
}

func NewHandler(p *Photos) *Handler {
	return &Handler{photos: p}
}

// POST /api/bookings/:id/pickup-photo (multipart field "photo")
func (h *Handler) UploadPickupPhoto(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid form data")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "photo file missing")
		return
	}
	defer file.Close()

	photo, err := h.photos.SavePickupPhoto(r.Context(), actor, ps.ByName("id"), file)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, photo)
}

// GET /api/bookings/:id/pickup-photo
func (h *Handler) PickupPhoto(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.servePhoto(w, r, ps.ByName("id"), false)
}

// GET /api/bookings/:id/pickup-photo/thumb
func (h *Handler) PickupPhotoThumb(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.servePhoto(w, r, ps.ByName("id"), true)
}

func (h *Handler) servePhoto(w http.ResponseWriter, r *http.Request, bookingID string, thumb bool) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	path, err := h.photos.PickupPhotoFile(r.Context(), actor, bookingID, thumb)
	if err != nil {
		utils.RespondWithAppError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}
