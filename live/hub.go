// Package live pushes booking events and notifications to connected
// websocket clients.
package live

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/gorilla/websocket"
)

type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	Rooms  []string
	UserID string
}

type broadcastMsg struct {
	Room string
	Data []byte
}

type Hub struct {
	rooms      map[string]map[*Client]bool
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	quit       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		quit:       make(chan struct{}),
	}
}

func BookingRoom(bookingID string) string { return "booking:" + bookingID }

func UserRoom(userID string) string { return "user:" + userID }

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			for _, room := range c.Rooms {
				if h.rooms[room] == nil {
					h.rooms[room] = make(map[*Client]bool)
				}
				h.rooms[room][c] = true
			}
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.Room] {
				select {
				case c.Send <- m.Data:
				default:
					h.drop(c)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop removes c from every room and closes its send channel once.
// Callers hold h.mu.
func (h *Hub) drop(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for _, room := range c.Rooms {
		if conns := h.rooms[room]; conns != nil {
			delete(conns, c)
			if len(conns) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	close(c.Send)
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		close(c.Send)
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Broadcast queues data for every client in room.
func (h *Hub) Broadcast(ctx context.Context, room string, data []byte) error {
	select {
	case h.broadcast <- broadcastMsg{Room: room, Data: data}:
		return nil
	case <-h.quit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribers reports how many clients are in room.
func (h *Hub) Subscribers(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Publish sends a booking event to the booking's subscribers.
func (h *Hub) Publish(ctx context.Context, ev models.Event) error {
	if ev.BookingID == "" {
		return nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.Broadcast(ctx, BookingRoom(ev.BookingID), data)
}

func (h *Hub) Name() string { return "live" }

// Deliver pushes a notification to every open connection of its user.
func (h *Hub) Deliver(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(envelope{Type: "notification", Payload: n})
	if err != nil {
		return err
	}
	return h.Broadcast(ctx, UserRoom(n.UserID), data)
}
