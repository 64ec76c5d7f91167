package utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
)

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindInvalidTransition:
		if ae.Code == apperr.CodePrecondition {
			return http.StatusPreconditionFailed
		}
		return http.StatusBadRequest
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// RespondWithAppError writes err as {"error", "code"}. Storage faults are
// logged and reported without their cause.
func RespondWithAppError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindPersistence {
		log.Printf("internal error: %v", err)
		RespondWithJSON(w, status, map[string]string{"error": "internal error", "code": apperr.KindPersistence.String()})
		return
	}
	msg := ae.Message
	if ae.Kind == apperr.KindUnauthorized {
		msg = "not authorized"
	}
	RespondWithJSON(w, status, map[string]string{"error": msg, "code": ae.Code})
}

type M map[string]interface{}
