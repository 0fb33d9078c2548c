package store

import "fmt"

// Schema describes the columns of one collection.
type Schema struct {
	Columns  []string
	Required []string
	// Defaults are the server-side column defaults.
	Defaults map[string]any
	// Stamped columns receive the server time on insert.
	Stamped []string
	// Touched reports whether updated_at is refreshed on every update.
	Touched bool
	// Relations maps an embeddable collection to the local foreign key column.
	Relations map[Collection]string
}

// HasColumn reports whether col belongs to the collection.
func (s Schema) HasColumn(col string) bool {
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

var schemas = map[Collection]Schema{
	Profiles: {
		Columns: []string{
			"id", "email", "full_name", "full_name_ar", "phone", "university", "university_ar",
			"student_id", "avatar_url", "user_type", "is_verified", "rating", "total_trips",
			"member_since", "created_at", "updated_at",
		},
		Required: []string{"id", "email", "full_name"},
		Defaults: map[string]any{
			"user_type":   "student",
			"is_verified": false,
			"rating":      0.0,
			"total_trips": 0,
		},
		Stamped: []string{"member_since", "created_at", "updated_at"},
		Touched: true,
	},
	Drivers: {
		Columns: []string{
			"id", "profile_id", "vehicle_type", "vehicle_plate", "vehicle_model", "vehicle_color",
			"license_number", "is_online", "current_latitude", "current_longitude",
			"earnings_today", "earnings_week", "earnings_month", "total_rides",
			"background_check_status", "insurance_status", "created_at", "updated_at",
		},
		Required: []string{"profile_id", "vehicle_type", "vehicle_plate", "license_number"},
		Defaults: map[string]any{
			"is_online":               false,
			"earnings_today":          0.0,
			"earnings_week":           0.0,
			"earnings_month":          0.0,
			"total_rides":             0,
			"background_check_status": "pending",
			"insurance_status":        "pending",
		},
		Stamped:   []string{"created_at", "updated_at"},
		Touched:   true,
		Relations: map[Collection]string{Profiles: "profile_id"},
	},
	Trips: {
		Columns: []string{
			"id", "passenger_id", "driver_id", "pickup_location", "pickup_latitude", "pickup_longitude",
			"destination_location", "destination_latitude", "destination_longitude", "vehicle_type",
			"status", "price", "scheduled_time", "pickup_time", "completion_time",
			"passenger_rating", "driver_rating", "passenger_feedback", "driver_feedback",
			"created_at", "updated_at",
		},
		Required: []string{
			"passenger_id", "pickup_location", "pickup_latitude", "pickup_longitude",
			"destination_location", "destination_latitude", "destination_longitude",
			"vehicle_type", "price",
		},
		Defaults: map[string]any{"status": "pending"},
		Stamped:  []string{"created_at", "updated_at"},
		Touched:  true,
	},
	Universities: {
		Columns: []string{
			"id", "name", "name_ar", "latitude", "longitude", "address", "address_ar",
			"is_active", "created_at",
		},
		Required: []string{"name", "name_ar", "latitude", "longitude"},
		Defaults: map[string]any{"is_active": true, "address": "", "address_ar": ""},
		Stamped:  []string{"created_at"},
	},
	SafetyReports: {
		Columns: []string{
			"id", "reporter_id", "trip_id", "driver_id", "report_type", "description",
			"status", "created_at", "updated_at",
		},
		Required: []string{"reporter_id", "report_type", "description"},
		Defaults: map[string]any{"status": "pending"},
		Stamped:  []string{"created_at", "updated_at"},
		Touched:  true,
	},
}

// Lookup returns the schema of c.
func Lookup(c Collection) (Schema, error) {
	s, ok := schemas[c]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	return s, nil
}

// Collections returns every known collection.
func Collections() []Collection {
	return []Collection{Profiles, Drivers, Trips, Universities, SafetyReports}
}

// ValidateQuery checks every column named by q against the schema of c.
func ValidateQuery(c Collection, q Query) error {
	s, err := Lookup(c)
	if err != nil {
		return err
	}
	if err := validateFilters(s, q.Filters); err != nil {
		return err
	}
	if err := validateFilters(s, q.Any); err != nil {
		return err
	}
	for _, o := range q.Order {
		if !s.HasColumn(o.Column) {
			return Invalid(o.Column, "unknown column")
		}
	}
	for _, e := range q.Embed {
		if _, ok := s.Relations[e]; !ok {
			return Invalid(string(e), "no relation")
		}
	}
	if q.Limit < 0 {
		return Invalid("limit", "must not be negative")
	}
	return nil
}

// ValidateInsert checks v against the schema of c.
func ValidateInsert(c Collection, v Values) error {
	s, err := Lookup(c)
	if err != nil {
		return err
	}
	if err := validateValues(s, v); err != nil {
		return err
	}
	for _, col := range s.Required {
		if val, ok := v[col]; !ok || val == nil {
			return Invalid(col, "required")
		}
	}
	return nil
}

// ValidateUpdate checks v and conds against the schema of c.
func ValidateUpdate(c Collection, id string, v Values, conds []Filter) error {
	s, err := Lookup(c)
	if err != nil {
		return err
	}
	if id == "" {
		return Invalid("id", "required")
	}
	if len(v) == 0 {
		return Invalid("", "no values to update")
	}
	if _, ok := v["id"]; ok {
		return Invalid("id", "immutable")
	}
	if err := validateValues(s, v); err != nil {
		return err
	}
	return validateFilters(s, conds)
}

func validateValues(s Schema, v Values) error {
	for col := range v {
		if !s.HasColumn(col) {
			return Invalid(col, "unknown column")
		}
	}
	return nil
}

func validateFilters(s Schema, fs []Filter) error {
	for _, f := range fs {
		if !s.HasColumn(f.Column) {
			return Invalid(f.Column, "unknown column")
		}
		switch f.Op {
		case OpEq, OpIn, OpIsNull:
		default:
			return Invalid(f.Column, "unsupported operator "+string(f.Op))
		}
	}
	return nil
}
