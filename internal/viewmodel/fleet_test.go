package viewmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"waselni/internal/domain"
	"waselni/internal/realtime"
	"waselni/internal/store"
	"waselni/internal/store/memory"
)

type fleetFixture struct {
	store  *memory.Store
	near   string
	nearer string
	far    string
}

// seedFleet creates drivers around the pickup point used by bookingRequest.
func seedFleet(t *testing.T) fleetFixture {
	t.Helper()
	s := newMemoryStore()

	driver := func(profile string, vt domain.VehicleType, online bool, check domain.BackgroundCheckStatus, lat, lon *float64) string {
		seedProfile(t, s, profile, "Driver "+profile)
		v := store.Values{
			"profile_id": profile, "vehicle_type": vt, "vehicle_plate": "P-" + profile, "license_number": "L-" + profile,
			"is_online": online, "background_check_status": check,
		}
		if lat != nil {
			v["current_latitude"] = *lat
			v["current_longitude"] = *lon
		}
		return seed(t, s, store.Drivers, v)
	}

	f := fleetFixture{store: s}
	f.near = driver("ali", domain.VehicleMinibus, true, domain.BackgroundCheckApproved, ptr(26.2285), ptr(50.5860))
	f.nearer = driver("sara", domain.VehiclePrivate, true, domain.BackgroundCheckApproved, ptr(26.2215), ptr(50.5835))
	f.far = driver("omar", domain.VehicleMinibus, true, domain.BackgroundCheckApproved, ptr(26.1500), ptr(50.4500))
	driver("huda", domain.VehicleMinibus, false, domain.BackgroundCheckApproved, ptr(26.2211), ptr(50.5833))
	driver("yusuf", domain.VehicleMinibus, true, domain.BackgroundCheckPending, ptr(26.2211), ptr(50.5833))
	driver("noor", domain.VehicleVolunteer, true, domain.BackgroundCheckApproved, nil, nil)
	return f
}

func TestFleet_NearbyDrivers(t *testing.T) {
	t.Parallel()

	f := seedFleet(t)
	fleet := NewFleet(f.store, f.store, 0, quietLogger())
	if err := fleet.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := fleet.NearbyDrivers(26.2210, 50.5832, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 drivers within the default radius, got %d", len(got))
	}
	if got[0].ID != f.nearer || got[1].ID != f.near {
		t.Errorf("expected nearest first, got %s then %s", got[0].ID, got[1].ID)
	}
	if got[0].DistanceKm > got[1].DistanceKm {
		t.Errorf("distances out of order: %v > %v", got[0].DistanceKm, got[1].DistanceKm)
	}
	if math.Abs(got[1].DistanceKm-0.88) > 0.05 {
		t.Errorf("expected roughly 0.88 km, got %v", got[1].DistanceKm)
	}
	if got[0].Profile == nil || got[0].Profile.FullName != "Driver sara" {
		t.Errorf("expected embedded profile, got %+v", got[0].Profile)
	}

	wide := fleet.NearbyDrivers(26.2210, 50.5832, 50)
	if len(wide) != 3 || wide[2].ID != f.far {
		t.Errorf("expected far driver at the end of a wide search, got %+v", wide)
	}
}

func TestFleet_DriversByType(t *testing.T) {
	t.Parallel()

	f := seedFleet(t)
	fleet := NewFleet(f.store, f.store, 10, quietLogger())
	if err := fleet.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if n := len(fleet.All()); n != 4 {
		t.Errorf("expected 4 visible drivers, got %d", n)
	}
	minibuses := fleet.DriversByType(domain.VehicleMinibus)
	if len(minibuses) != 2 {
		t.Errorf("expected 2 visible minibuses, got %d", len(minibuses))
	}
	for _, d := range minibuses {
		if !d.Visible() {
			t.Errorf("driver %s should not be visible", d.ID)
		}
	}
}

func TestFleet_RealtimeKeepsVisibleDrivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := seedFleet(t)
	fleet := NewFleet(f.store, f.store, 10, quietLogger())
	if err := fleet.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if err := fleet.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	defer fleet.Deactivate()

	if _, err := f.store.Update(ctx, store.Drivers, f.near, store.Values{"current_latitude": 26.2210, "current_longitude": 50.5832}); err != nil {
		t.Fatalf("update: %v", err)
	}
	eventually(t, "moved driver", func() bool {
		got := fleet.NearbyDrivers(26.2210, 50.5832, 0.01)
		return len(got) == 1 && got[0].ID == f.near
	})
	moved := fleet.NearbyDrivers(26.2210, 50.5832, 0.01)[0]
	if moved.Profile == nil {
		t.Error("expected cached profile to survive a change event")
	}

	if _, err := f.store.Update(ctx, store.Drivers, f.near, store.Values{"is_online": false}); err != nil {
		t.Fatalf("update: %v", err)
	}
	eventually(t, "offline driver dropped", func() bool {
		for _, d := range fleet.All() {
			if d.ID == f.near {
				return false
			}
		}
		return true
	})
}

func TestFleet_SetOnlineAndLocation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := seedFleet(t)
	fleet := NewFleet(f.store, f.store, 10, quietLogger())
	if err := fleet.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, err := fleet.SetOnline(ctx, f.far, false); err != nil {
		t.Fatalf("set offline: %v", err)
	}
	if n := len(fleet.All()); n != 3 {
		t.Errorf("expected offline driver to leave the cache, got %d drivers", n)
	}

	d, err := fleet.UpdateDriverLocation(ctx, f.nearer, 26.2300, 50.5900)
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if d.CurrentLatitude == nil || *d.CurrentLatitude != 26.2300 {
		t.Errorf("expected new latitude, got %v", d.CurrentLatitude)
	}

	_, err = fleet.UpdateDriverLocation(ctx, f.nearer, 26.23, 200)
	var verr *store.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for bad longitude, got %v", err)
	}
	if _, err := fleet.SetOnline(ctx, "missing", true); !store.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestFleet_DriverForProfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := seedFleet(t)
	fleet := NewFleet(f.store, f.store, 10, quietLogger())

	d, err := fleet.DriverForProfile(ctx, "huda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.IsOnline || d.Profile == nil {
		t.Errorf("expected offline driver with profile, got %+v", d)
	}

	if _, err := fleet.DriverForProfile(ctx, "passenger-1"); !store.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestFleet_RefreshFailureKeepsCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := seedFleet(t)
	client := &flakyClient{Client: f.store}
	fleet := NewFleet(client, f.store, 10, quietLogger())
	if err := fleet.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	client.fail(errors.New("timeout"))
	if err := fleet.Refresh(ctx); err == nil {
		t.Fatal("expected refresh to fail")
	}
	if n := len(fleet.All()); n != 4 {
		t.Errorf("expected cached drivers to survive, got %d", n)
	}
}

func driverRow(id string, online bool, lat float64, updated string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"profile_id":"p-%s","vehicle_type":"minibus","is_online":%t,"background_check_status":"approved","current_latitude":%v,"current_longitude":50.5832,"updated_at":%q}`,
		id, id, online, lat, updated))
}

func TestFleet_RefreshKeepsChangesAppliedMeanwhile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := seedFleet(t)
	client := newGatedClient(f.store, store.Drivers)
	fleet := NewFleet(client, f.store, 10, quietLogger())

	done := make(chan error, 1)
	go func() { done <- fleet.Refresh(ctx) }()

	select {
	case <-client.listed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the driver list")
	}

	// events racing the slow list
	fleet.apply(realtime.Event{Kind: realtime.KindUpdate, Collection: store.Drivers, New: driverRow(f.near, false, 26.2285, "2030-01-01T00:00:00Z")})
	fleet.apply(realtime.Event{Kind: realtime.KindUpdate, Collection: store.Drivers, New: driverRow(f.nearer, true, 26.2400, "2030-01-01T00:00:00Z")})
	fleet.apply(realtime.Event{Kind: realtime.KindDelete, Collection: store.Drivers, Old: driverRow(f.far, true, 26.1500, "2030-01-01T00:00:00Z")})
	fleet.apply(realtime.Event{Kind: realtime.KindInsert, Collection: store.Drivers, New: driverRow("late", true, 26.2211, "2030-01-01T00:00:00Z")})

	close(client.release)
	if err := <-done; err != nil {
		t.Fatalf("refresh: %v", err)
	}

	got := map[string]domain.Driver{}
	for _, d := range fleet.All() {
		got[d.ID] = d
	}
	if _, ok := got[f.near]; ok {
		t.Error("expected the driver that went offline to stay gone")
	}
	if _, ok := got[f.far]; ok {
		t.Error("expected the deleted driver to stay gone")
	}
	if d, ok := got[f.nearer]; !ok || *d.CurrentLatitude != 26.2400 {
		t.Errorf("expected the moved driver to keep its new position, got %+v", d)
	}
	if _, ok := got["late"]; !ok {
		t.Error("expected the driver that came online to survive the refresh")
	}
}

func TestFleet_RefreshNeverRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := seedFleet(t)
	fleet := NewFleet(f.store, f.store, 10, quietLogger())
	if err := fleet.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	fleet.apply(realtime.Event{Kind: realtime.KindUpdate, Collection: store.Drivers, New: driverRow(f.far, true, 26.2000, "2030-01-01T00:00:00Z")})
	if err := fleet.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	for _, d := range fleet.All() {
		if d.ID != f.far {
			continue
		}
		if *d.CurrentLatitude != 26.2000 {
			t.Errorf("expected the newer cached row to win over the listed one, got %v", *d.CurrentLatitude)
		}
		if d.Profile == nil {
			t.Error("expected the listed profile to be kept")
		}
		return
	}
	t.Error("expected the driver to stay cached")
}
