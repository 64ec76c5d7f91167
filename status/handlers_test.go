package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MS0C54073/CarWashApp-sub000/globals"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/julienschmidt/httprouter"
)

func call(h httprouter.Handle, method, body string, actor models.Actor) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "/api/bookings/b1", strings.NewReader(body))
	ctx := context.WithValue(r.Context(), globals.UserIDKey, actor.UserID)
	ctx = context.WithValue(ctx, globals.RoleKey, actor.Role)
	rec := httptest.NewRecorder()
	h(rec, r.WithContext(ctx), httprouter.Params{{Key: "id", Value: "b1"}})
	return rec
}

func TestStatusHandlers(t *testing.T) {
	a, _, _ := newAuthority(t, models.StatusPickedUpPendingConfirmation, "d1")
	h := NewHandler(a)

	if rec := call(h.UpdateStatus, "PUT", `{}`, client); rec.Code != http.StatusBadRequest {
		t.Errorf("empty status: %d", rec.Code)
	}
	if rec := call(h.UpdateStatus, "PUT", `{"status":"picked_up"}`, carwash); rec.Code != http.StatusBadRequest {
		t.Errorf("car wash confirming pickup: %d", rec.Code)
	}

	rec := call(h.Transitions, "GET", "", client)
	var out struct {
		Allowed []models.BookingStatus `json:"allowed"`
	}
	json.NewDecoder(rec.Body).Decode(&out)
	if rec.Code != http.StatusOK || len(out.Allowed) == 0 {
		t.Fatalf("transitions: %d %v", rec.Code, out.Allowed)
	}

	rec = call(h.UpdateStatus, "PUT", `{"status":"picked_up"}`, client)
	if rec.Code != http.StatusOK {
		t.Fatalf("client confirms pickup: %d %s", rec.Code, rec.Body)
	}
	var b models.Booking
	json.NewDecoder(rec.Body).Decode(&b)
	if b.Status != models.StatusPickedUp {
		t.Fatalf("status = %s", b.Status)
	}

	if rec := call(h.Cancel, "POST", "", driver); rec.Code != http.StatusForbidden {
		t.Errorf("driver cancel: %d", rec.Code)
	}
	if rec := call(h.Cancel, "POST", "", client); rec.Code != http.StatusOK {
		t.Errorf("client cancel: %d %s", rec.Code, rec.Body)
	}
}
