package postgres

import (
	"context"
	"fmt"

	"waselni/internal/store"
)

// ChangeChannel is the NOTIFY channel every row change is published on.
const ChangeChannel = "waselni_changes"

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		full_name_ar TEXT,
		phone TEXT,
		university TEXT,
		university_ar TEXT,
		student_id TEXT,
		avatar_url TEXT,
		user_type TEXT NOT NULL DEFAULT 'student' CHECK (user_type IN ('student', 'driver')),
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		rating NUMERIC(3,2) NOT NULL DEFAULT 0 CHECK (rating >= 0 AND rating <= 5),
		total_trips INTEGER NOT NULL DEFAULT 0 CHECK (total_trips >= 0),
		member_since TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS drivers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		profile_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		vehicle_type TEXT NOT NULL CHECK (vehicle_type IN ('minibus', 'private', 'volunteer')),
		vehicle_plate TEXT NOT NULL,
		vehicle_model TEXT,
		vehicle_color TEXT,
		license_number TEXT NOT NULL,
		is_online BOOLEAN NOT NULL DEFAULT FALSE,
		current_latitude DOUBLE PRECISION,
		current_longitude DOUBLE PRECISION,
		earnings_today NUMERIC(10,2) NOT NULL DEFAULT 0,
		earnings_week NUMERIC(10,2) NOT NULL DEFAULT 0,
		earnings_month NUMERIC(10,2) NOT NULL DEFAULT 0,
		total_rides INTEGER NOT NULL DEFAULT 0,
		background_check_status TEXT NOT NULL DEFAULT 'pending'
			CHECK (background_check_status IN ('pending', 'approved', 'rejected')),
		insurance_status TEXT NOT NULL DEFAULT 'pending'
			CHECK (insurance_status IN ('pending', 'approved', 'expired')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS trips (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		passenger_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		driver_id UUID REFERENCES drivers(id) ON DELETE SET NULL,
		pickup_location TEXT NOT NULL,
		pickup_latitude DOUBLE PRECISION NOT NULL,
		pickup_longitude DOUBLE PRECISION NOT NULL,
		destination_location TEXT NOT NULL,
		destination_latitude DOUBLE PRECISION NOT NULL,
		destination_longitude DOUBLE PRECISION NOT NULL,
		vehicle_type TEXT NOT NULL CHECK (vehicle_type IN ('minibus', 'private', 'volunteer')),
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'accepted', 'picked_up', 'in_transit', 'completed', 'cancelled')),
		price NUMERIC(10,2) NOT NULL CHECK (price >= 0),
		scheduled_time TIMESTAMPTZ,
		pickup_time TIMESTAMPTZ,
		completion_time TIMESTAMPTZ,
		passenger_rating INTEGER CHECK (passenger_rating BETWEEN 1 AND 5),
		driver_rating INTEGER CHECK (driver_rating BETWEEN 1 AND 5),
		passenger_feedback TEXT,
		driver_feedback TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS universities (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		name_ar TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		address_ar TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS safety_reports (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		reporter_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		trip_id UUID REFERENCES trips(id) ON DELETE SET NULL,
		driver_id UUID REFERENCES drivers(id) ON DELETE SET NULL,
		report_type TEXT NOT NULL
			CHECK (report_type IN ('safety_concern', 'inappropriate_behavior', 'vehicle_issue', 'other')),
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'investigating', 'resolved', 'dismissed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_drivers_online ON drivers (is_online, background_check_status)`,
	`CREATE INDEX IF NOT EXISTS idx_drivers_profile ON drivers (profile_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_passenger ON trips (passenger_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_trips_driver ON trips (driver_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_safety_reports_reporter ON safety_reports (reporter_id)`,
	`CREATE OR REPLACE FUNCTION waselni_touch_updated_at() RETURNS trigger AS $$
	BEGIN
		NEW.updated_at = now();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`CREATE OR REPLACE FUNCTION waselni_notify_change() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + ChangeChannel + `', json_build_object(
			'table', TG_TABLE_NAME,
			'type', TG_OP,
			'record', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE row_to_json(NEW) END,
			'old_record', CASE WHEN TG_OP = 'INSERT' THEN NULL ELSE row_to_json(OLD) END,
			'commit_timestamp', now()
		)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
}

// triggerStatements returns the touch and notify triggers of every collection.
func triggerStatements() []string {
	var stmts []string
	for _, c := range store.Collections() {
		schema, _ := store.Lookup(c)
		table := ident(string(c))
		if schema.Touched {
			stmts = append(stmts,
				fmt.Sprintf("DROP TRIGGER IF EXISTS %s_touch ON %s", c, table),
				fmt.Sprintf("CREATE TRIGGER %s_touch BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION waselni_touch_updated_at()", c, table),
			)
		}
		stmts = append(stmts,
			fmt.Sprintf("DROP TRIGGER IF EXISTS %s_notify ON %s", c, table),
			fmt.Sprintf("CREATE TRIGGER %s_notify AFTER INSERT OR UPDATE OR DELETE ON %s FOR EACH ROW EXECUTE FUNCTION waselni_notify_change()", c, table),
		)
	}
	return stmts
}

// EnsureSchema creates the tables, indexes and triggers when missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	stmts := append(append([]string(nil), ddl...), triggerStatements()...)
	for _, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
