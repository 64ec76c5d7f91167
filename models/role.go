package models

type Role string

const (
	RoleClient   Role = "client"
	RoleDriver   Role = "driver"
	RoleCarWash  Role = "carwash"
	RoleAdmin    Role = "admin"
	RoleSubAdmin Role = "subadmin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleClient, RoleDriver, RoleCarWash, RoleAdmin, RoleSubAdmin:
		return r, true
	}
	return "", false
}

// IsOperator reports whether the role has unrestricted operator access.
func (r Role) IsOperator() bool {
	return r == RoleAdmin || r == RoleSubAdmin
}

// Actor is the identity a request acts as.
type Actor struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// CanView reports whether the actor may see a booking's details.
func (a Actor) CanView(b Booking) bool {
	switch a.Role {
	case RoleAdmin, RoleSubAdmin:
		return true
	case RoleClient:
		return b.ClientID == a.UserID
	case RoleDriver:
		return b.DriverID != "" && b.DriverID == a.UserID
	case RoleCarWash:
		return b.CarWashID == a.UserID
	}
	return false
}
