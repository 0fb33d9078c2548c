package domain

import "time"

// ReportType is the category of a safety report.
type ReportType string

const (
	ReportSafetyConcern         ReportType = "safety_concern"
	ReportInappropriateBehavior ReportType = "inappropriate_behavior"
	ReportVehicleIssue          ReportType = "vehicle_issue"
	ReportOther                 ReportType = "other"
)

// Valid reports whether r is a known report type.
func (r ReportType) Valid() bool {
	switch r {
	case ReportSafetyConcern, ReportInappropriateBehavior, ReportVehicleIssue, ReportOther:
		return true
	}
	return false
}

// ReportStatus is the moderation state of a safety report.
type ReportStatus string

const (
	ReportPending       ReportStatus = "pending"
	ReportInvestigating ReportStatus = "investigating"
	ReportResolved      ReportStatus = "resolved"
	ReportDismissed     ReportStatus = "dismissed"
)

// SafetyReport is an incident filed by a passenger or driver.
type SafetyReport struct {
	ID          string       `json:"id"`
	ReporterID  string       `json:"reporter_id"`
	TripID      *string      `json:"trip_id"`
	DriverID    *string      `json:"driver_id"`
	ReportType  ReportType   `json:"report_type"`
	Description string       `json:"description"`
	Status      ReportStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// EmergencyContact is a phone number offered on the safety screen.
type EmergencyContact struct {
	Name   string `json:"name"`
	NameAr string `json:"name_ar"`
	Number string `json:"number"`
	Kind   string `json:"kind"`
}

var emergencyContacts = []EmergencyContact{
	{Name: "Emergency Services", NameAr: "خدمات الطوارئ", Number: "999", Kind: "emergency"},
	{Name: "Police", NameAr: "الشرطة", Number: "17999999", Kind: "police"},
	{Name: "Waselni Support", NameAr: "دعم وصلني", Number: "17123456", Kind: "support"},
}

// EmergencyContacts returns the contacts shown on the safety screen.
func EmergencyContacts() []EmergencyContact {
	out := make([]EmergencyContact, len(emergencyContacts))
	copy(out, emergencyContacts)
	return out
}
