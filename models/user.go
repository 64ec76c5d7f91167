package models

// User is the subset of an account record this service reads.
type User struct {
	ID           string          `json:"id" bson:"id"`
	Name         string          `json:"name" bson:"name"`
	Role         Role            `json:"role" bson:"role"`
	Phone        string          `json:"phone,omitempty" bson:"phone,omitempty"`
	Location     *Location       `json:"location,omitempty" bson:"location,omitempty"` // car-wash site
	LastLocation *DriverLocation `json:"lastLocation,omitempty" bson:"lastLocation,omitempty"`
}

type Vehicle struct {
	ID      string `json:"id" bson:"id"`
	OwnerID string `json:"ownerId" bson:"ownerId"`
	Make    string `json:"make" bson:"make"`
	Model   string `json:"model" bson:"model"`
	Plate   string `json:"plate" bson:"plate"`
}

func (v Vehicle) Label() string {
	label := v.Make
	if v.Model != "" {
		label += " " + v.Model
	}
	if v.Plate != "" {
		label += " (" + v.Plate + ")"
	}
	return label
}

type Service struct {
	ID              string  `json:"id" bson:"id"`
	Name            string  `json:"name" bson:"name"`
	Price           float64 `json:"price" bson:"price"`
	DurationMinutes int     `json:"durationMinutes" bson:"durationMinutes"`
}
