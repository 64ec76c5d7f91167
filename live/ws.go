package live

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/apperr"
	"github.com/MS0C54073/CarWashApp-sub000/models"
	"github.com/MS0C54073/CarWashApp-sub000/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type BookingReader interface {
	Get(ctx context.Context, id string) (models.Booking, error)
}

type Handler struct {
	hub      *Hub
	bookings BookingReader
}

func NewHandler(hub *Hub, bookings BookingReader) *Handler {
	return &Handler{hub: hub, bookings: bookings}
}

// GET /ws/bookings/:id
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := utils.GetActorFromRequest(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookingID := ps.ByName("id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	b, err := h.bookings.Get(ctx, bookingID)
	cancel()
	if err != nil {
		utils.RespondWithAppError(w, apperr.Persistence("load booking", err))
		return
	}
	if !actor.CanView(b) {
		utils.RespondWithAppError(w, apperr.Unauthorized())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Live] upgrade for %s: %v", bookingID, err)
		return
	}
	client := &Client{
		Conn:   conn,
		Send:   make(chan []byte, 64),
		Rooms:  []string{BookingRoom(bookingID), UserRoom(actor.UserID)},
		UserID: actor.UserID,
	}
	h.hub.Register(client)
	go writePump(client)
	readPump(client, h.hub)
}

func writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the connection alive; subscribers never send data.
func readPump(c *Client, hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
