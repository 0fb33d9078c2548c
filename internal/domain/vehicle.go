package domain

// VehicleType represents the kind of vehicle a trip is booked on.
type VehicleType string

const (
	VehicleMinibus   VehicleType = "minibus"
	VehiclePrivate   VehicleType = "private"
	VehicleVolunteer VehicleType = "volunteer"
)

// Valid reports whether v is a known vehicle type.
func (v VehicleType) Valid() bool {
	switch v {
	case VehicleMinibus, VehiclePrivate, VehicleVolunteer:
		return true
	}
	return false
}

// VehicleOption is one entry of the booking catalog.
type VehicleOption struct {
	Type      VehicleType `json:"type"`
	Name      string      `json:"name"`
	NameAr    string      `json:"name_ar"`
	BasePrice float64     `json:"base_price"`
	Capacity  string      `json:"capacity"`
	ETA       string      `json:"eta"`
}

// DisplayName returns the name in the requested language.
func (o VehicleOption) DisplayName(lang Language) string {
	return Localize(lang, o.Name, o.NameAr)
}

var vehicleCatalog = []VehicleOption{
	{Type: VehicleMinibus, Name: "Minibus", NameAr: "حافلة صغيرة", BasePrice: 2.5, Capacity: "8-12 passengers", ETA: "5-8 min"},
	{Type: VehiclePrivate, Name: "Private Car", NameAr: "سيارة خاصة", BasePrice: 4.0, Capacity: "1-4 passengers", ETA: "3-6 min"},
	{Type: VehicleVolunteer, Name: "Volunteer", NameAr: "متطوع", BasePrice: 0, Capacity: "1-3 passengers", ETA: "10-15 min"},
}

// VehicleCatalog returns the bookable vehicle options in display order.
func VehicleCatalog() []VehicleOption {
	out := make([]VehicleOption, len(vehicleCatalog))
	copy(out, vehicleCatalog)
	return out
}

// BasePrice returns the catalog price for v.
func BasePrice(v VehicleType) (float64, bool) {
	for _, opt := range vehicleCatalog {
		if opt.Type == v {
			return opt.BasePrice, true
		}
	}
	return 0, false
}
