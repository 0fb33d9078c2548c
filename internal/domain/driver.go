package domain

import (
	"time"

	"waselni/internal/geo"
)

// BackgroundCheckStatus represents the vetting state of a driver.
type BackgroundCheckStatus string

const (
	BackgroundCheckPending  BackgroundCheckStatus = "pending"
	BackgroundCheckApproved BackgroundCheckStatus = "approved"
	BackgroundCheckRejected BackgroundCheckStatus = "rejected"
)

// InsuranceStatus represents the insurance state of a driver's vehicle.
type InsuranceStatus string

const (
	InsurancePending  InsuranceStatus = "pending"
	InsuranceApproved InsuranceStatus = "approved"
	InsuranceExpired  InsuranceStatus = "expired"
)

// Driver is the driver extension of a profile.
type Driver struct {
	ID                    string                `json:"id"`
	ProfileID             string                `json:"profile_id"`
	VehicleType           VehicleType           `json:"vehicle_type"`
	VehiclePlate          string                `json:"vehicle_plate"`
	VehicleModel          *string               `json:"vehicle_model"`
	VehicleColor          *string               `json:"vehicle_color"`
	LicenseNumber         string                `json:"license_number"`
	IsOnline              bool                  `json:"is_online"`
	CurrentLatitude       *float64              `json:"current_latitude"`
	CurrentLongitude      *float64              `json:"current_longitude"`
	EarningsToday         float64               `json:"earnings_today"`
	EarningsWeek          float64               `json:"earnings_week"`
	EarningsMonth         float64               `json:"earnings_month"`
	TotalRides            int                   `json:"total_rides"`
	BackgroundCheckStatus BackgroundCheckStatus `json:"background_check_status"`
	InsuranceStatus       InsuranceStatus       `json:"insurance_status"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`

	// Profile is only present when the driver was listed with its profile.
	Profile *Profile `json:"profiles,omitempty"`
}

// Visible reports whether the driver may be shown to passengers.
func (d Driver) Visible() bool {
	return d.IsOnline && d.BackgroundCheckStatus == BackgroundCheckApproved
}

// Position returns the last known coordinate, or false before the first
// location update.
func (d Driver) Position() (geo.Point, bool) {
	if d.CurrentLatitude == nil || d.CurrentLongitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *d.CurrentLatitude, Lon: *d.CurrentLongitude}, true
}
