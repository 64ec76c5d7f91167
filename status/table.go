package status

import (
	"sort"
	"time"

	"github.com/MS0C54073/CarWashApp-sub000/models"
)

// rule describes one requested target status for a role.
type rule struct {
	// from lists the current statuses the target may be reached from.
	from []models.BookingStatus
	// stored is the status actually written when it differs from the
	// requested one.
	stored models.BookingStatus
	// precondition marks rules whose unmet from-set is reported as a failed
	// precondition rather than a plain invalid transition.
	precondition bool
	// cancel rules are governed by the terminal set instead of from.
	cancel bool
	// override accepts any current status (operator rules).
	override bool
}

func (r rule) target(requested models.BookingStatus) models.BookingStatus {
	if r.stored != "" {
		return r.stored
	}
	return requested
}

func (r rule) allowsFrom(current models.BookingStatus) bool {
	if r.cancel {
		return !cancelTerminal[current]
	}
	if r.override {
		return true
	}
	for _, s := range r.from {
		if s == current {
			return true
		}
	}
	return false
}

var cancelRule = rule{cancel: true}

// transitions is the role × requested-status table. Operators are not listed:
// they may request any known status.
var transitions = map[models.Role]map[models.BookingStatus]rule{
	models.RoleDriver: {
		models.StatusAccepted: {from: []models.BookingStatus{models.StatusPending}},
		models.StatusDeclined: {from: []models.BookingStatus{models.StatusPending}},
		// A driver's pickup is only an assertion until the client confirms it.
		models.StatusPickedUp: {
			from:   []models.BookingStatus{models.StatusAccepted},
			stored: models.StatusPickedUpPendingConfirmation,
		},
		models.StatusDeliveredToClient: {from: []models.BookingStatus{models.StatusWashCompleted}},
	},
	models.RoleClient: {
		models.StatusPickedUp: {
			from:         []models.BookingStatus{models.StatusPickedUpPendingConfirmation},
			precondition: true,
		},
		models.StatusCancelled: cancelRule,
	},
	models.RoleCarWash: {
		models.StatusAtWash:        {from: []models.BookingStatus{models.StatusPickedUp, models.StatusDeliveredToWash}},
		models.StatusWaitingBay:    {from: []models.BookingStatus{models.StatusAtWash, models.StatusDeliveredToWash}},
		models.StatusWashingBay:    {from: []models.BookingStatus{models.StatusWaitingBay}},
		models.StatusDryingBay:     {from: []models.BookingStatus{models.StatusWashingBay}},
		models.StatusWashCompleted: {from: []models.BookingStatus{models.StatusWashingBay, models.StatusDryingBay}},
	},
}

// cancelTerminal is the set of statuses a booking can no longer be cancelled
// from.
var cancelTerminal = map[models.BookingStatus]bool{
	models.StatusCompleted:         true,
	models.StatusDeliveredToClient: true,
	models.StatusWashCompleted:     true,
	models.StatusDelivered:         true,
	models.StatusCancelled:         true,
}

// lookup returns the rule for role requesting target. ok is false when the
// role may never request target.
func lookup(role models.Role, target models.BookingStatus) (rule, bool) {
	if role.IsOperator() {
		if target == models.StatusCancelled {
			return cancelRule, true
		}
		return rule{override: true}, target.Valid()
	}
	r, ok := transitions[role][target]
	return r, ok
}

// AllowedTargets lists the statuses role may request for a booking currently
// in current, sorted for stable output. Ownership is not considered.
func AllowedTargets(role models.Role, current models.BookingStatus) []models.BookingStatus {
	var out []models.BookingStatus
	if role.IsOperator() {
		for _, s := range models.Statuses {
			if s == current {
				continue
			}
			if s == models.StatusCancelled && cancelTerminal[current] {
				continue
			}
			out = append(out, s)
		}
	} else {
		for target, r := range transitions[role] {
			if r.allowsFrom(current) {
				out = append(out, target)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// stampLifecycle sets the write-once timestamp matching stored, unless the
// booking already carries it.
func stampLifecycle(p *models.BookingPatch, stored models.BookingStatus, b models.Booking, now time.Time) {
	switch stored {
	case models.StatusPickedUp:
		if b.ActualPickupTime == nil {
			p.ActualPickupTime = &now
		}
	case models.StatusWashingBay:
		if b.WashStartTime == nil {
			p.WashStartTime = &now
		}
	case models.StatusWashCompleted:
		if b.WashCompleteTime == nil {
			p.WashCompleteTime = &now
		}
	case models.StatusDeliveredToClient:
		if b.DeliveryTime == nil {
			p.DeliveryTime = &now
		}
	}
}
