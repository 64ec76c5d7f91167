package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// UnmarshalJSON requires both lat and lng so a missing field is not read as 0.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Lat == nil || raw.Lng == nil {
		return errors.New("coordinates need both lat and lng")
	}
	c.Lat, c.Lng = *raw.Lat, *raw.Lng
	return nil
}

func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", c.Lng)
	}
	return nil
}

type DriverActivity string

const (
	ActivityIdle      DriverActivity = "idle"
	ActivityEnRoute   DriverActivity = "en_route"
	ActivityAtPickup  DriverActivity = "at_pickup"
	ActivityAtWash    DriverActivity = "at_wash"
	ActivityAtDropoff DriverActivity = "at_dropoff"
)

func (a DriverActivity) Valid() bool {
	switch a {
	case ActivityIdle, ActivityEnRoute, ActivityAtPickup, ActivityAtWash, ActivityAtDropoff:
		return true
	}
	return false
}

// LocationSample is one persisted position report.
type LocationSample struct {
	ID          string         `json:"id" bson:"id"`
	UserID      string         `json:"userId" bson:"userId"`
	BookingID   string         `json:"bookingId,omitempty" bson:"bookingId,omitempty"`
	Coordinates Coordinates    `json:"coordinates" bson:"coordinates"`
	Accuracy    *float64       `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	Heading     *float64       `json:"heading,omitempty" bson:"heading,omitempty"`
	Speed       *float64       `json:"speed,omitempty" bson:"speed,omitempty"`
	Status      DriverActivity `json:"status" bson:"status"`
	Timestamp   time.Time      `json:"timestamp" bson:"timestamp"`
}

// DriverLocation is the denormalized last-known location kept on the driver
// record.
type DriverLocation struct {
	DriverID    string         `json:"driverId" bson:"driverId"`
	BookingID   string         `json:"bookingId,omitempty" bson:"bookingId,omitempty"`
	Coordinates Coordinates    `json:"coordinates" bson:"coordinates"`
	Accuracy    *float64       `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	Heading     *float64       `json:"heading,omitempty" bson:"heading,omitempty"`
	Speed       *float64       `json:"speed,omitempty" bson:"speed,omitempty"`
	Status      DriverActivity `json:"status" bson:"status"`
	UpdatedAt   time.Time      `json:"updatedAt" bson:"updatedAt"`
}

func (s LocationSample) DriverLocation() DriverLocation {
	return DriverLocation{
		DriverID:    s.UserID,
		BookingID:   s.BookingID,
		Coordinates: s.Coordinates,
		Accuracy:    s.Accuracy,
		Heading:     s.Heading,
		Speed:       s.Speed,
		Status:      s.Status,
		UpdatedAt:   s.Timestamp,
	}
}

// BookingLocation is the role-scoped tracking view of one booking.
type BookingLocation struct {
	BookingID         string          `json:"bookingId"`
	Status            BookingStatus   `json:"status"`
	Pickup            *Location       `json:"pickup,omitempty"`
	CarWash           *Location       `json:"carWash,omitempty"`
	Driver            *DriverLocation `json:"driver,omitempty"`
	QueuePosition     int             `json:"queuePosition,omitempty"`
	EstimatedWaitTime int             `json:"estimatedWaitTime,omitempty"`
}

// ArrivalOrderMetrics ranks a booking among the car-wash's active bookings by
// creation time. It is a secondary estimate; QueueEntry positions are the
// authoritative ordering.
type ArrivalOrderMetrics struct {
	CarWashID               string `json:"carWashId"`
	BookingID               string `json:"bookingId"`
	ArrivalRank             int    `json:"arrivalRank"`
	ActiveBookings          int    `json:"activeBookings"`
	ArrivalOrderWaitMinutes int    `json:"arrivalOrderWaitMinutes"`
}
