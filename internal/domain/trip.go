package domain

import (
	"time"

	"waselni/internal/geo"
)

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusPending   TripStatus = "pending"
	TripStatusAccepted  TripStatus = "accepted"
	TripStatusPickedUp  TripStatus = "picked_up"
	TripStatusInTransit TripStatus = "in_transit"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// tripTransitions lists the statuses reachable from each non-terminal status.
var tripTransitions = map[TripStatus][]TripStatus{
	TripStatusPending:   {TripStatusAccepted, TripStatusCancelled},
	TripStatusAccepted:  {TripStatusPickedUp, TripStatusCancelled},
	TripStatusPickedUp:  {TripStatusInTransit},
	TripStatusInTransit: {TripStatusCompleted},
}

// Valid reports whether s is a known trip status.
func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusPending, TripStatusAccepted, TripStatusPickedUp,
		TripStatusInTransit, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status writes are accepted.
func (s TripStatus) Terminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// Upcoming reports whether a trip in this status still lies ahead of the passenger.
func (s TripStatus) Upcoming() bool {
	switch s {
	case TripStatusPending, TripStatusAccepted, TripStatusPickedUp, TripStatusInTransit:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s.
func (s TripStatus) NextStatuses() []TripStatus {
	next := tripTransitions[s]
	out := make([]TripStatus, len(next))
	copy(out, next)
	return out
}

// ValidateTransition returns an *InvalidTransitionError when from → to is not allowed.
func ValidateTransition(from, to TripStatus) error {
	if !from.CanTransitionTo(to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// RatingRole identifies which side of a trip is leaving a rating.
type RatingRole string

const (
	RatingRolePassenger RatingRole = "passenger"
	RatingRoleDriver    RatingRole = "driver"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Trip represents a requested or in-progress ride.
type Trip struct {
	ID                   string      `json:"id"`
	PassengerID          string      `json:"passenger_id"`
	DriverID             *string     `json:"driver_id"`
	PickupLocation       string      `json:"pickup_location"`
	PickupLatitude       float64     `json:"pickup_latitude"`
	PickupLongitude      float64     `json:"pickup_longitude"`
	DestinationLocation  string      `json:"destination_location"`
	DestinationLatitude  float64     `json:"destination_latitude"`
	DestinationLongitude float64     `json:"destination_longitude"`
	VehicleType          VehicleType `json:"vehicle_type"`
	Status               TripStatus  `json:"status"`
	Price                float64     `json:"price"`
	ScheduledTime        *time.Time  `json:"scheduled_time"`
	PickupTime           *time.Time  `json:"pickup_time"`
	CompletionTime       *time.Time  `json:"completion_time"`
	PassengerRating      *int        `json:"passenger_rating"`
	DriverRating         *int        `json:"driver_rating"`
	PassengerFeedback    *string     `json:"passenger_feedback"`
	DriverFeedback       *string     `json:"driver_feedback"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// Pickup returns the pickup coordinate.
func (t Trip) Pickup() geo.Point {
	return geo.Point{Lat: t.PickupLatitude, Lon: t.PickupLongitude}
}

// Destination returns the destination coordinate.
func (t Trip) Destination() geo.Point {
	return geo.Point{Lat: t.DestinationLatitude, Lon: t.DestinationLongitude}
}

// DistanceKm returns the straight-line trip distance.
func (t Trip) DistanceKm() float64 {
	return geo.Haversine(t.Pickup(), t.Destination())
}

// Rated reports whether the given role has already rated the trip.
func (t Trip) Rated(role RatingRole) bool {
	if role == RatingRoleDriver {
		return t.DriverRating != nil
	}
	return t.PassengerRating != nil
}

// Place is a labelled coordinate used when booking a trip.
type Place struct {
	Label string    `json:"label"`
	Point geo.Point `json:"point"`
}
