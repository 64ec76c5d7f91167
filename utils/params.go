package utils

import (
	"net/http"
	"strconv"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
)

// QueryLimit reads the "limit" query parameter, falling back to def and
// rejecting values outside [1, max].
func QueryLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, apperr.BadRequest("limit must be between 1 and %d", max)
	}
	return n, nil
}
