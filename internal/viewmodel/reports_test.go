package viewmodel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"waselni/internal/domain"
	"waselni/internal/store"
)

func TestReports_Submit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newMemoryStore()
	vm := NewReports("passenger-1", s, s, quietLogger())

	r, err := vm.Submit(ctx, ReportRequest{
		Type:        domain.ReportVehicleIssue,
		Description: " Seatbelt broken ",
		TripID:      ptr("trip-1"),
		DriverID:    ptr(""),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != domain.ReportPending {
		t.Errorf("expected pending, got %s", r.Status)
	}
	if r.Description != "Seatbelt broken" {
		t.Errorf("expected trimmed description, got %q", r.Description)
	}
	if r.TripID == nil || *r.TripID != "trip-1" {
		t.Errorf("expected trip reference, got %v", r.TripID)
	}
	if r.DriverID != nil {
		t.Errorf("expected empty driver reference to be omitted, got %v", *r.DriverID)
	}
	if got := vm.All(); len(got) != 1 || got[0].ID != r.ID {
		t.Errorf("expected report in cache, got %+v", got)
	}
}

func TestReports_SubmitValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		user  string
		req   ReportRequest
		field string
	}{
		{"no user", "", ReportRequest{Type: domain.ReportOther, Description: "x"}, "reporter_id"},
		{"unknown type", "p1", ReportRequest{Type: "spam", Description: "x"}, "report_type"},
		{"blank description", "p1", ReportRequest{Type: domain.ReportOther, Description: "   "}, "description"},
		{"long description", "p1", ReportRequest{Type: domain.ReportOther, Description: strings.Repeat("a", maxReportLength+1)}, "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemoryStore()
			vm := NewReports(tt.user, s, s, quietLogger())

			_, err := vm.Submit(context.Background(), tt.req)
			var verr *store.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestReports_RefreshAndModeration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newMemoryStore()

	first := seed(t, s, store.SafetyReports, store.Values{"reporter_id": "passenger-1", "report_type": "other", "description": "first"})
	seed(t, s, store.SafetyReports, store.Values{"reporter_id": "passenger-2", "report_type": "other", "description": "not mine"})
	second := seed(t, s, store.SafetyReports, store.Values{"reporter_id": "passenger-1", "report_type": "safety_concern", "description": "second"})

	vm := NewReports("passenger-1", s, s, quietLogger())
	if err := vm.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	all := vm.All()
	if len(all) != 2 || all[0].ID != second || all[1].ID != first {
		t.Fatalf("expected own reports newest first, got %+v", all)
	}

	if err := vm.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer vm.Deactivate()

	if _, err := s.Update(ctx, store.SafetyReports, first, store.Values{"status": "investigating"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	eventually(t, "moderated report", func() bool {
		for _, r := range vm.All() {
			if r.ID == first {
				return r.Status == domain.ReportInvestigating
			}
		}
		return false
	})
}
