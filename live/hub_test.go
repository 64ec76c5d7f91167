package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/globals"
	"github.com/MS0C54073/CarWashApp-sub000/memstore"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{
		Send:  make(chan []byte, 10),
		Rooms: []string{BookingRoom("b1"), UserRoom("c1")},
	}
	hub.Register(client)

	ev := models.Event{Type: models.EventStatus, BookingID: "b1", Payload: map[string]string{"status": "accepted"}}
	if err := hub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want, _ := json.Marshal(ev)

	select {
	case got := <-client.Send:
		if string(got) != string(want) {
			t.Fatalf("expected %s, got %s", want, got)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	if err := hub.Deliver(context.Background(), models.Notification{ID: "n1", UserID: "c1"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	select {
	case got := <-client.Send:
		if !strings.Contains(string(got), `"type":"notification"`) {
			t.Fatalf("notification envelope = %s", got)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	hub.Unregister(client)
	select {
	case _, ok := <-client.Send:
		if ok {
			t.Fatal("send channel still open after unregister")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("send channel never closed")
	}
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{Send: make(chan []byte, 1), Rooms: []string{BookingRoom("b1")}}
	hub.Register(client)
	hub.Stop()
	hub.Stop()

	select {
	case _, ok := <-client.Send:
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("client not closed on stop")
	}
	if err := hub.Publish(context.Background(), models.Event{BookingID: "b1"}); err != nil {
		t.Fatalf("publish after stop: %v", err)
	}
}

func TestSubscribeOverWebsocket(t *testing.T) {
	store := memstore.New()
	store.Bookings.Insert(context.Background(), models.Booking{ID: "b1", ClientID: "c1", CarWashID: "w1"})

	hub := NewHub()
	go hub.Run()
	defer hub.Stop()
	h := NewHandler(hub, store.Bookings)

	as := func(userID string) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			ctx := context.WithValue(r.Context(), globals.UserIDKey, userID)
			ctx = context.WithValue(ctx, globals.RoleKey, models.RoleClient)
			h.Subscribe(w, r.WithContext(ctx), ps)
		}
	}
	router := httprouter.New()
	router.GET("/ws/owner/:id", as("c1"))
	router.GET("/ws/stranger/:id", as("c2"))
	srv := httptest.NewServer(router)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	if _, resp, err := websocket.DefaultDialer.Dial(base+"/ws/stranger/b1", nil); err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger subscribed: err = %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/owner/b1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(BookingRoom("b1")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(context.Background(), models.Event{Type: models.EventLocation, BookingID: "b1", DriverID: "d1"})
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got models.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != models.EventLocation || got.DriverID != "d1" {
		t.Fatalf("event = %+v", got)
	}
}
