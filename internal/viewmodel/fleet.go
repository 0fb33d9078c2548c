package viewmodel

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"waselni/internal/domain"
	"waselni/internal/geo"
	"waselni/internal/realtime"
	"waselni/internal/repository"
	"waselni/internal/store"
)

// DefaultNearbyRadiusKm is the search radius used when none is given.
const DefaultNearbyRadiusKm = 10.0

// NearbyDriver is a visible driver with its distance from the query point.
type NearbyDriver struct {
	domain.Driver
	DistanceKm float64 `json:"distance_km"`
}

// Fleet caches the visible drivers. It is shared by every session.
type Fleet struct {
	drivers       *repository.DriverRepository
	source        realtime.Source
	log           logrus.FieldLogger
	defaultRadius float64

	mu    sync.RWMutex
	cache map[string]domain.Driver
	// loading counts refreshes in flight; touched holds the drivers
	// changed while any of them runs.
	loading int
	touched map[string]struct{}

	subs listeners
}

// NewFleet creates the fleet view model. A non-positive radius selects
// DefaultNearbyRadiusKm.
func NewFleet(client store.Client, source realtime.Source, defaultRadiusKm float64, log logrus.FieldLogger) *Fleet {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = DefaultNearbyRadiusKm
	}
	return &Fleet{
		drivers:       repository.NewDriverRepository(client),
		source:        source,
		log:           log.WithField("view", "fleet"),
		defaultRadius: defaultRadiusKm,
		cache:         make(map[string]domain.Driver),
	}
}

// Refresh reloads the online, approved drivers with their profiles. Drivers
// changed while the reload runs keep their cached state, and a listed row
// never replaces a strictly newer cached one.
func (f *Fleet) Refresh(ctx context.Context) error {
	q := store.NewQuery().
		Where(store.Eq("is_online", true), store.Eq("background_check_status", domain.BackgroundCheckApproved)).
		Embedding(store.Profiles)

	f.mu.Lock()
	f.loading++
	if f.touched == nil {
		f.touched = make(map[string]struct{})
	}
	f.mu.Unlock()

	list, err := f.drivers.List(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()
	defer f.doneLoadingLocked()

	if err != nil {
		logRefreshFailure(f.log, store.Drivers, err)
		return err
	}

	cache := make(map[string]domain.Driver, len(list))
	for _, d := range list {
		if _, changed := f.touched[d.ID]; changed || !d.Visible() {
			continue
		}
		if cached, ok := f.cache[d.ID]; ok && d.UpdatedAt.Before(cached.UpdatedAt) {
			if cached.Profile == nil {
				cached.Profile = d.Profile
			}
			d = cached
		}
		cache[d.ID] = d
	}
	for id := range f.touched {
		if d, ok := f.cache[id]; ok {
			cache[id] = d
		}
	}
	f.cache = cache
	return nil
}

func (f *Fleet) doneLoadingLocked() {
	f.loading--
	if f.loading <= 0 {
		f.loading = 0
		f.touched = nil
	}
}

func (f *Fleet) markLocked(id string) {
	if f.touched != nil {
		f.touched[id] = struct{}{}
	}
}

// Activate subscribes to driver changes until Deactivate or until ctx ends.
// A dropped stream is resubscribed and followed by a refresh.
func (f *Fleet) Activate(ctx context.Context) error {
	sub := realtime.Subscription{Collection: store.Drivers}
	if err := f.subs.start(ctx, f.source, sub, f.apply, resyncWith(f.log, f.Refresh), f.log); err != nil {
		f.log.WithError(err).Warn("driver subscription failed")
		return err
	}
	return nil
}

// Deactivate releases the subscription.
func (f *Fleet) Deactivate() {
	f.subs.stopAll()
}

func (f *Fleet) apply(e realtime.Event) {
	var d domain.Driver
	if err := e.Decode(&d); err != nil || d.ID == "" {
		f.log.WithField("kind", e.Kind).Warn("ignoring undecodable driver event")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if e.Kind == realtime.KindDelete {
		f.markLocked(d.ID)
		delete(f.cache, d.ID)
		return
	}
	f.mergeLocked(d)
}

// mergeLocked applies d with last-write-wins, dropping drivers that are no
// longer visible. Change events carry no embedded profile, so the cached
// one is kept.
func (f *Fleet) mergeLocked(d domain.Driver) {
	cached, ok := f.cache[d.ID]
	if ok && d.UpdatedAt.Before(cached.UpdatedAt) {
		return
	}
	f.markLocked(d.ID)
	if !d.Visible() {
		delete(f.cache, d.ID)
		return
	}
	if d.Profile == nil && ok {
		d.Profile = cached.Profile
	}
	f.cache[d.ID] = d
}

// NearbyDrivers returns visible drivers with a known position within
// radiusKm of (lat, lon), nearest first.
func (f *Fleet) NearbyDrivers(lat, lon, radiusKm float64) []NearbyDriver {
	if radiusKm <= 0 {
		radiusKm = f.defaultRadius
	}
	origin := geo.Point{Lat: lat, Lon: lon}

	f.mu.RLock()
	out := make([]NearbyDriver, 0, len(f.cache))
	for _, d := range f.cache {
		pos, ok := d.Position()
		if !ok || !d.Visible() {
			continue
		}
		dist := geo.Haversine(origin, pos)
		if dist <= radiusKm {
			out = append(out, NearbyDriver{Driver: d, DistanceKm: dist})
		}
	}
	f.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DriversByType returns the visible drivers of vehicle type vt.
func (f *Fleet) DriversByType(vt domain.VehicleType) []domain.Driver {
	return f.filter(func(d domain.Driver) bool { return d.VehicleType == vt })
}

// All returns every visible driver.
func (f *Fleet) All() []domain.Driver {
	return f.filter(nil)
}

func (f *Fleet) filter(keep func(domain.Driver) bool) []domain.Driver {
	f.mu.RLock()
	out := make([]domain.Driver, 0, len(f.cache))
	for _, d := range f.cache {
		if keep == nil || keep(d) {
			out = append(out, d)
		}
	}
	f.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateDriverLocation records the driver's current position.
func (f *Fleet) UpdateDriverLocation(ctx context.Context, driverID string, lat, lon float64) (domain.Driver, error) {
	if driverID == "" {
		return domain.Driver{}, store.Invalid("id", "required")
	}
	if !(geo.Point{Lat: lat, Lon: lon}).Valid() {
		return domain.Driver{}, store.Invalid("current_latitude", "coordinates out of range")
	}
	return f.write(ctx, driverID, store.Values{"current_latitude": lat, "current_longitude": lon})
}

// SetOnline toggles whether the driver accepts trips.
func (f *Fleet) SetOnline(ctx context.Context, driverID string, online bool) (domain.Driver, error) {
	if driverID == "" {
		return domain.Driver{}, store.Invalid("id", "required")
	}
	return f.write(ctx, driverID, store.Values{"is_online": online})
}

func (f *Fleet) write(ctx context.Context, driverID string, v store.Values) (domain.Driver, error) {
	d, err := f.drivers.Update(ctx, driverID, v)
	if err != nil {
		return domain.Driver{}, err
	}

	f.mu.Lock()
	f.mergeLocked(d)
	f.mu.Unlock()
	return d, nil
}

// DriverForProfile returns the driver record of a profile, visible or not.
func (f *Fleet) DriverForProfile(ctx context.Context, profileID string) (domain.Driver, error) {
	if profileID == "" {
		return domain.Driver{}, store.Invalid("profile_id", ErrNoUser.Error())
	}
	list, err := f.drivers.List(ctx, store.NewQuery().
		Where(store.Eq("profile_id", profileID)).
		Embedding(store.Profiles).
		WithLimit(1))
	if err != nil {
		return domain.Driver{}, err
	}
	if len(list) == 0 {
		return domain.Driver{}, &store.NotFoundError{Collection: store.Drivers, ID: "profile:" + profileID}
	}
	return list[0], nil
}
