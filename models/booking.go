package models

import "time"

type BookingType string

const (
	BookingPickupDelivery BookingType = "pickup_delivery"
	BookingDriveIn        BookingType = "drive_in"
)

func (t BookingType) Valid() bool {
	return t == BookingPickupDelivery || t == BookingDriveIn
}

type BookingStatus string

const (
	StatusPending                     BookingStatus = "pending"
	StatusAccepted                    BookingStatus = "accepted"
	StatusDeclined                    BookingStatus = "declined"
	StatusPickedUpPendingConfirmation BookingStatus = "picked_up_pending_confirmation"
	StatusPickedUp                    BookingStatus = "picked_up"
	StatusAtWash                      BookingStatus = "at_wash"
	StatusDeliveredToWash             BookingStatus = "delivered_to_wash"
	StatusWaitingBay                  BookingStatus = "waiting_bay"
	StatusWashingBay                  BookingStatus = "washing_bay"
	StatusDryingBay                   BookingStatus = "drying_bay"
	StatusWashCompleted               BookingStatus = "wash_completed"
	StatusDeliveredToClient           BookingStatus = "delivered_to_client"
	StatusCompleted                   BookingStatus = "completed"
	StatusCancelled                   BookingStatus = "cancelled"

	// StatusDelivered is a legacy value still present on old records.
	StatusDelivered BookingStatus = "delivered"
)

// Statuses lists every status a booking can be moved to, in lifecycle order.
var Statuses = []BookingStatus{
	StatusPending, StatusAccepted, StatusDeclined,
	StatusPickedUpPendingConfirmation, StatusPickedUp,
	StatusAtWash, StatusDeliveredToWash, StatusWaitingBay,
	StatusWashingBay, StatusDryingBay, StatusWashCompleted,
	StatusDeliveredToClient, StatusCompleted, StatusCancelled,
}

// Valid reports whether s is a status a booking can be moved to. The legacy
// "delivered" value is readable but never written.
func (s BookingStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// AtWashStatuses are the statuses in which the vehicle is physically at the
// car-wash and has not finished washing.
var AtWashStatuses = []BookingStatus{
	StatusAtWash, StatusDeliveredToWash, StatusWaitingBay, StatusWashingBay, StatusDryingBay,
}

// Location is a coordinate with an optional human readable address.
type Location struct {
	Coordinates Coordinates `json:"coordinates" bson:"coordinates"`
	Address     string      `json:"address,omitempty" bson:"address,omitempty"`
}

type Booking struct {
	ID          string        `json:"id" bson:"id"`
	ClientID    string        `json:"clientId" bson:"clientId"`
	DriverID    string        `json:"driverId,omitempty" bson:"driverId,omitempty"`
	CarWashID   string        `json:"carWashId" bson:"carWashId"`
	VehicleID   string        `json:"vehicleId" bson:"vehicleId"`
	ServiceID   string        `json:"serviceId" bson:"serviceId"`
	BookingType BookingType   `json:"bookingType" bson:"bookingType"`
	Status      BookingStatus `json:"status" bson:"status"`

	PickupLocation *Location `json:"pickupLocation,omitempty" bson:"pickupLocation,omitempty"`

	// Priced from the service at creation; payment state belongs to the
	// payment collaborator.
	TotalAmount   float64 `json:"totalAmount" bson:"totalAmount"`
	PaymentStatus string  `json:"paymentStatus,omitempty" bson:"paymentStatus,omitempty"`

	CreatedAt        time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt" bson:"updatedAt"`
	ActualPickupTime *time.Time `json:"actualPickupTime,omitempty" bson:"actualPickupTime,omitempty"`
	WashStartTime    *time.Time `json:"washStartTime,omitempty" bson:"washStartTime,omitempty"`
	WashCompleteTime *time.Time `json:"washCompleteTime,omitempty" bson:"washCompleteTime,omitempty"`
	DeliveryTime     *time.Time `json:"deliveryTime,omitempty" bson:"deliveryTime,omitempty"`

	QueuePosition     int `json:"queuePosition,omitempty" bson:"queuePosition,omitempty"`
	EstimatedWaitTime int `json:"estimatedWaitTime,omitempty" bson:"estimatedWaitTime,omitempty"` // minutes

	// File name under the upload dir; served by GET /api/bookings/:id/pickup-photo.
	PickupPhoto string `json:"pickupPhoto,omitempty" bson:"pickupPhoto,omitempty"`

	Version int64 `json:"version" bson:"version"`
}

// AnyVersion disables the optimistic version check on an update. Only used
// for fields no transition decision depends on (queue mirror, evidence path).
const AnyVersion int64 = 0

// BookingPatch is a partial update. Nil fields are left untouched.
type BookingPatch struct {
	Status            *BookingStatus
	DriverID          *string
	ActualPickupTime  *time.Time
	WashStartTime     *time.Time
	WashCompleteTime  *time.Time
	DeliveryTime      *time.Time
	QueuePosition     *int
	EstimatedWaitTime *int
	PickupPhoto       *string
	UpdatedAt         time.Time
}

// Apply copies the set fields of p onto b. Stores share it so the in-memory
// and Mongo backends agree on patch semantics.
func (p BookingPatch) Apply(b *Booking) {
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.DriverID != nil {
		b.DriverID = *p.DriverID
	}
	if p.ActualPickupTime != nil {
		b.ActualPickupTime = p.ActualPickupTime
	}
	if p.WashStartTime != nil {
		b.WashStartTime = p.WashStartTime
	}
	if p.WashCompleteTime != nil {
		b.WashCompleteTime = p.WashCompleteTime
	}
	if p.DeliveryTime != nil {
		b.DeliveryTime = p.DeliveryTime
	}
	if p.QueuePosition != nil {
		b.QueuePosition = *p.QueuePosition
	}
	if p.EstimatedWaitTime != nil {
		b.EstimatedWaitTime = *p.EstimatedWaitTime
	}
	if p.PickupPhoto != nil {
		b.PickupPhoto = *p.PickupPhoto
	}
	if !p.UpdatedAt.IsZero() {
		b.UpdatedAt = p.UpdatedAt
	}
}

// BookingFilter selects bookings for listing. Empty fields match anything.
type BookingFilter struct {
	ClientID  string
	DriverID  string
	CarWashID string
	Statuses  []BookingStatus
}

// BookingSummary is the display projection joined onto queue listings.
type BookingSummary struct {
	BookingID    string        `json:"bookingId"`
	Status       BookingStatus `json:"status"`
	BookingType  BookingType   `json:"bookingType"`
	ClientID     string        `json:"clientId"`
	ClientName   string        `json:"clientName,omitempty"`
	VehicleID    string        `json:"vehicleId"`
	VehicleLabel string        `json:"vehicleLabel,omitempty"`
	ServiceID    string        `json:"serviceId"`
}
