package utils

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/middleware"
	"github.com/MS0C54073/CarWashApp-sub000/models"
)

// GetActorFromRequest returns the authenticated identity. ok is false when
// the route was not wrapped in Authenticate.
func GetActorFromRequest(r *http.Request) (models.Actor, bool) {
	return middleware.ActorFromContext(r.Context())
}

// DecodeJSON reads a bounded JSON body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return apperr.BadRequest("invalid payload")
	}
	return nil
}
