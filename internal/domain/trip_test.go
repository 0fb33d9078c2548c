package domain

import (
	"errors"
	"testing"
)

func TestTripStatus_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from TripStatus
		to   TripStatus
		want bool
	}{
		{TripStatusPending, TripStatusAccepted, true},
		{TripStatusPending, TripStatusCancelled, true},
		{TripStatusAccepted, TripStatusPickedUp, true},
		{TripStatusAccepted, TripStatusCancelled, true},
		{TripStatusPickedUp, TripStatusInTransit, true},
		{TripStatusInTransit, TripStatusCompleted, true},

		{TripStatusPending, TripStatusCompleted, false},
		{TripStatusPending, TripStatusPickedUp, false},
		{TripStatusPickedUp, TripStatusCancelled, false},
		{TripStatusInTransit, TripStatusCancelled, false},
		{TripStatusCompleted, TripStatusPending, false},
		{TripStatusCancelled, TripStatusAccepted, false},
		{TripStatusAccepted, TripStatusAccepted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestTripStatus_TerminalHasNoSuccessors(t *testing.T) {
	t.Parallel()

	for _, s := range []TripStatus{TripStatusCompleted, TripStatusCancelled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
		if n := len(s.NextStatuses()); n != 0 {
			t.Errorf("expected no successors for %s, got %d", s, n)
		}
	}
}

func TestTripStatus_Upcoming(t *testing.T) {
	t.Parallel()

	upcoming := map[TripStatus]bool{
		TripStatusPending:   true,
		TripStatusAccepted:  true,
		TripStatusPickedUp:  true,
		TripStatusInTransit: true,
		TripStatusCompleted: false,
		TripStatusCancelled: false,
	}
	for s, want := range upcoming {
		if got := s.Upcoming(); got != want {
			t.Errorf("%s: expected upcoming=%v, got %v", s, want, got)
		}
	}
}

func TestValidateTransition_CancelledThenAccepted(t *testing.T) {
	t.Parallel()

	err := ValidateTransition(TripStatusCancelled, TripStatusAccepted)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != TripStatusCancelled || ite.To != TripStatusAccepted {
		t.Errorf("unexpected error fields: %+v", ite)
	}

	if err := ValidateTransition(TripStatusPending, TripStatusAccepted); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInvalidTransitionError_Message(t *testing.T) {
	t.Parallel()

	err := &InvalidTransitionError{From: TripStatusPending, To: TripStatusCompleted, Reason: "trip not completed"}
	want := "invalid trip transition from pending to completed: trip not completed"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestTrip_Rated(t *testing.T) {
	t.Parallel()

	five := 5
	trip := Trip{PassengerRating: &five}
	if !trip.Rated(RatingRolePassenger) {
		t.Error("expected passenger rating to be set")
	}
	if trip.Rated(RatingRoleDriver) {
		t.Error("expected driver rating to be unset")
	}
}
