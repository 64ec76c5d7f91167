package models

import "time"

type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

type Notification struct {
	ID        string               `json:"id" bson:"id"`
	UserID    string               `json:"userId" bson:"userId"`
	Kind      string               `json:"kind" bson:"kind"`
	Title     string               `json:"title" bson:"title"`
	Body      string               `json:"body" bson:"body"`
	Data      map[string]string    `json:"data,omitempty" bson:"data,omitempty"`
	Priority  NotificationPriority `json:"priority" bson:"priority"`
	Read      bool                 `json:"read" bson:"read"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
}

// Event is the envelope published on the event bus and pushed to live
// subscribers.
type Event struct {
	Type      string    `json:"type"` // "status" or "location"
	BookingID string    `json:"bookingId,omitempty"`
	DriverID  string    `json:"driverId,omitempty"`
	Payload   any       `json:"payload"`
	At        time.Time `json:"at"`
}

const (
	EventStatus   = "status"
	EventLocation = "location"
)
