package status

import (
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/google/uuid"
)

type audience uint8

const (
	toClient audience = 1 << iota
	toDriver
	toCarWash
)

type notice struct {
	to       audience
	title    string
	body     string
	priority models.NotificationPriority
}

var notices = map[models.BookingStatus]notice{
	models.StatusPending:                     {toClient, "Booking reopened", "Your booking is waiting for a driver again.", models.PriorityNormal},
	models.StatusAccepted:                    {toClient, "Driver assigned", "A driver accepted your booking.", models.PriorityNormal},
	models.StatusDeclined:                    {toClient, "Booking declined", "Your booking was declined.", models.PriorityHigh},
	models.StatusPickedUpPendingConfirmation: {toClient, "Confirm pickup", "Your driver reports the vehicle was picked up. Please confirm.", models.PriorityHigh},
	models.StatusPickedUp:                    {toDriver | toCarWash, "Pickup confirmed", "The client confirmed the vehicle pickup.", models.PriorityNormal},
	models.StatusAtWash:                      {toClient | toDriver, "At the car wash", "The vehicle arrived at the car wash.", models.PriorityNormal},
	models.StatusDeliveredToWash:             {toClient | toCarWash, "Delivered to the car wash", "The vehicle was handed over to the car wash.", models.PriorityNormal},
	models.StatusWaitingBay:                  {toClient, "In the queue", "The vehicle is waiting for a wash bay.", models.PriorityNormal},
	models.StatusWashingBay:                  {toClient, "Washing started", "The wash has started.", models.PriorityNormal},
	models.StatusDryingBay:                   {toClient, "Drying", "The vehicle is being dried.", models.PriorityNormal},
	models.StatusWashCompleted:               {toClient | toDriver, "Wash completed", "The wash is complete.", models.PriorityHigh},
	models.StatusDeliveredToClient:           {toClient, "Vehicle delivered", "Your vehicle was delivered back to you.", models.PriorityNormal},
	models.StatusCompleted:                   {toClient | toDriver | toCarWash, "Booking completed", "The booking is complete.", models.PriorityNormal},
	models.StatusCancelled:                   {toClient | toDriver | toCarWash, "Booking cancelled", "The booking was cancelled.", models.PriorityHigh},
}

// notificationsFor selects the counterparts of a committed transition. The
// acting user is never notified about their own action.
func notificationsFor(b models.Booking, actor models.Actor, now time.Time) []models.Notification {
	nt, ok := notices[b.Status]
	if !ok {
		return nil
	}
	var recipients []string
	if nt.to&toClient != 0 {
		recipients = append(recipients, b.ClientID)
	}
	if nt.to&toDriver != 0 {
		recipients = append(recipients, b.DriverID)
	}
	if nt.to&toCarWash != 0 {
		recipients = append(recipients, b.CarWashID)
	}

	var out []models.Notification
	for _, userID := range recipients {
		if userID == "" || userID == actor.UserID {
			continue
		}
		out = append(out, models.Notification{
			ID:       uuid.NewString(),
			UserID:   userID,
			Kind:     "booking_status",
			Title:    nt.title,
			Body:     nt.body,
			Priority: nt.priority,
			Data: map[string]string{
				"bookingId": b.ID,
				"status":    string(b.Status),
			},
			CreatedAt: now,
		})
	}
	return out
}
