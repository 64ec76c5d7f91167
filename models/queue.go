package models

import "time"

type QueueStatus string

const (
	QueueWaiting    QueueStatus = "waiting"
	QueueInProgress QueueStatus = "in_progress"
	QueueCompleted  QueueStatus = "completed"
)

// QueueEntry is one booking's place in a car-wash's waiting line. Entries are
// never deleted; completed ones remain as history.
type QueueEntry struct {
	ID                      string      `json:"id" bson:"id"`
	CarWashID               string      `json:"carWashId" bson:"carWashId"`
	BookingID               string      `json:"bookingId" bson:"bookingId"`
	Position                int         `json:"position" bson:"position"`
	ServiceDurationMinutes  int         `json:"serviceDurationMinutes" bson:"serviceDurationMinutes"`
	EstimatedStartTime      time.Time   `json:"estimatedStartTime" bson:"estimatedStartTime"`
	EstimatedCompletionTime time.Time   `json:"estimatedCompletionTime" bson:"estimatedCompletionTime"`
	ActualStartTime         *time.Time  `json:"actualStartTime,omitempty" bson:"actualStartTime,omitempty"`
	ActualCompletionTime    *time.Time  `json:"actualCompletionTime,omitempty" bson:"actualCompletionTime,omitempty"`
	Status                  QueueStatus `json:"status" bson:"status"`
	// Active mirrors Status != completed; the unique position index is
	// partial on it.
	Active    bool      `json:"-" bson:"active"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// QueuePatch is a guarded partial update of a queue entry.
type QueuePatch struct {
	// From restricts the update to entries currently in one of these statuses.
	From []QueueStatus

	Status                  *QueueStatus
	ServiceDurationMinutes  *int
	EstimatedCompletionTime *time.Time
	ActualStartTime         *time.Time
	ActualCompletionTime    *time.Time
	UpdatedAt               time.Time
}

func (p QueuePatch) Allows(s QueueStatus) bool {
	if len(p.From) == 0 {
		return true
	}
	for _, f := range p.From {
		if f == s {
			return true
		}
	}
	return false
}

func (p QueuePatch) Apply(e *QueueEntry) {
	if p.Status != nil {
		e.Status = *p.Status
		e.Active = *p.Status != QueueCompleted
	}
	if p.ServiceDurationMinutes != nil {
		e.ServiceDurationMinutes = *p.ServiceDurationMinutes
	}
	if p.EstimatedCompletionTime != nil {
		e.EstimatedCompletionTime = *p.EstimatedCompletionTime
	}
	if p.ActualStartTime != nil {
		e.ActualStartTime = p.ActualStartTime
	}
	if p.ActualCompletionTime != nil {
		e.ActualCompletionTime = p.ActualCompletionTime
	}
	if !p.UpdatedAt.IsZero() {
		e.UpdatedAt = p.UpdatedAt
	}
}

// QueueItem is a queue entry joined with its booking for display.
type QueueItem struct {
	QueueEntry
	Booking *BookingSummary `json:"booking,omitempty"`
}

// QueuePosition is the read model returned to a client polling its place.
type QueuePosition struct {
	QueueID                 string      `json:"queueId"`
	BookingID               string      `json:"bookingId"`
	CarWashID               string      `json:"carWashId"`
	Position                int         `json:"position"`
	Ahead                   int         `json:"ahead"`
	EstimatedWaitTime       int         `json:"estimatedWaitTime"`
	EstimatedStartTime      time.Time   `json:"estimatedStartTime"`
	EstimatedCompletionTime time.Time   `json:"estimatedCompletionTime"`
	Status                  QueueStatus `json:"status"`
}
