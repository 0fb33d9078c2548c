package domain

import "fmt"

// InvalidTransitionError is returned when a trip write violates the status
// lifecycle, including ratings left before completion or left twice.
type InvalidTransitionError struct {
	From   TripStatus
	To     TripStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid trip transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid trip transition from %s to %s", e.From, e.To)
}

// ForbiddenError is returned when a user acts on a trip they take no part in,
// or in a role the trip does not give them.
type ForbiddenError struct {
	UserID string
	TripID string
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %s may not %s trip %s", e.UserID, e.Action, e.TripID)
}
