package viewmodel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"waselni/internal/domain"
	"waselni/internal/realtime"
	"waselni/internal/repository"
	"waselni/internal/store"
)

const watchBuffer = 16

// TripRequest is a booking.
type TripRequest struct {
	Pickup      domain.Place
	Destination domain.Place
	VehicleType domain.VehicleType
	// Price defaults to the vehicle's catalog price when nil.
	Price         *float64
	ScheduledTime *time.Time
}

// TripPatch is a partial trip update. Nil fields are left unchanged.
type TripPatch struct {
	Status        *domain.TripStatus
	DriverID      *string
	Price         *float64
	ScheduledTime *time.Time
}

// TripChange is an applied change to the trips cache.
type TripChange struct {
	Kind realtime.Kind `json:"kind"`
	Trip domain.Trip   `json:"trip"`
}

// Trips is the trip list of one user, as passenger and as driver.
type Trips struct {
	userID   string
	trips    *repository.TripRepository
	drivers  *repository.DriverRepository
	profiles *repository.ProfileRepository
	source   realtime.Source
	log      logrus.FieldLogger
	now      func() time.Time

	mu        sync.RWMutex
	cache     *ordered[domain.Trip]
	driverIDs []string
	watchers  map[chan TripChange]struct{}

	subs listeners
}

// NewTrips creates the trips view model of userID.
func NewTrips(userID string, client store.Client, source realtime.Source, log logrus.FieldLogger) *Trips {
	return &Trips{
		userID:   userID,
		trips:    repository.NewTripRepository(client),
		drivers:  repository.NewDriverRepository(client),
		profiles: repository.NewProfileRepository(client),
		source:   source,
		log:      log.WithFields(logrus.Fields{"view": "trips", "user_id": userID}),
		now:      time.Now,
		cache: newOrdered(
			func(t domain.Trip) string { return t.ID },
			func(t domain.Trip) time.Time { return t.CreatedAt },
			func(t domain.Trip) time.Time { return t.UpdatedAt },
		),
		watchers: make(map[chan TripChange]struct{}),
	}
}

// Refresh reloads the trips where the user is the passenger or one of the
// user's driver records is assigned, newest first. Events applied while the
// reload runs are kept over the listed rows.
func (vm *Trips) Refresh(ctx context.Context) error {
	if err := requireUser(vm.userID, "passenger_id"); err != nil {
		return err
	}

	vm.mu.Lock()
	vm.cache.begin()
	vm.mu.Unlock()

	ids, trips, err := vm.list(ctx)
	if err != nil {
		vm.mu.Lock()
		vm.cache.abort()
		vm.mu.Unlock()
		return err
	}

	vm.mu.Lock()
	vm.cache.finish(trips)
	vm.driverIDs = ids
	vm.mu.Unlock()
	return nil
}

func (vm *Trips) list(ctx context.Context) ([]string, []domain.Trip, error) {
	drivers, err := vm.drivers.List(ctx, store.NewQuery().Where(store.Eq("profile_id", vm.userID)))
	if err != nil {
		logRefreshFailure(vm.log, store.Drivers, err)
		return nil, nil, err
	}
	ids := make([]string, len(drivers))
	for i, d := range drivers {
		ids[i] = d.ID
	}

	q := store.NewQuery().OrderBy("created_at", true)
	if len(ids) == 0 {
		q = q.Where(store.Eq("passenger_id", vm.userID))
	} else {
		q = q.Or(store.Eq("passenger_id", vm.userID), store.In("driver_id", store.Strings(ids)...))
	}

	trips, err := vm.trips.List(ctx, q)
	if err != nil {
		logRefreshFailure(vm.log, store.Trips, err)
		return nil, nil, err
	}
	return ids, trips, nil
}

// Activate subscribes to the user's trips: as passenger, and as driver for
// every driver record known from the last refresh. Subscriptions already
// running are kept, so calling it again after a refresh only adds the new
// driver records. The subscriptions live until Deactivate or until ctx ends.
func (vm *Trips) Activate(ctx context.Context) error {
	if err := requireUser(vm.userID, "passenger_id"); err != nil {
		return err
	}

	vm.mu.RLock()
	filters := []string{"passenger_id=eq." + vm.userID}
	for _, id := range vm.driverIDs {
		filters = append(filters, "driver_id=eq."+id)
	}
	vm.mu.RUnlock()

	var firstErr error
	for _, f := range filters {
		sub := realtime.Subscription{Collection: store.Trips, Filter: f}
		if err := vm.subs.start(ctx, vm.source, sub, vm.apply, resyncWith(vm.log, vm.Refresh), vm.log); err != nil {
			vm.log.WithError(err).WithField("filter", f).Warn("trip subscription failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Deactivate releases the subscriptions and ends every watch.
func (vm *Trips) Deactivate() {
	vm.subs.stopAll()

	vm.mu.Lock()
	for ch := range vm.watchers {
		close(ch)
	}
	vm.watchers = make(map[chan TripChange]struct{})
	vm.mu.Unlock()
}

// Active reports whether any subscription is running.
func (vm *Trips) Active() bool {
	return vm.subs.active()
}

func (vm *Trips) apply(e realtime.Event) {
	var t domain.Trip
	if err := e.Decode(&t); err != nil || t.ID == "" {
		vm.log.WithField("kind", e.Kind).Warn("ignoring undecodable trip event")
		return
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()

	switch e.Kind {
	case realtime.KindDelete:
		if vm.cache.remove(t.ID) {
			vm.notifyLocked(TripChange{Kind: realtime.KindDelete, Trip: t})
		}
	default:
		if vm.cache.upsert(t) {
			vm.notifyLocked(TripChange{Kind: e.Kind, Trip: t})
		}
	}
}

// acknowledge applies a write result.
func (vm *Trips) acknowledge(kind realtime.Kind, t domain.Trip) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.cache.upsert(t) {
		vm.notifyLocked(TripChange{Kind: kind, Trip: t})
	}
}

// notifyLocked fans a change out to watchers. Slow watchers miss changes
// rather than stall the cache; they re-read with Get.
func (vm *Trips) notifyLocked(c TripChange) {
	for ch := range vm.watchers {
		select {
		case ch <- c:
		default:
		}
	}
}

// Watch returns a channel of applied trip changes and a function that ends
// the watch. The channel is closed on cancel or Deactivate.
func (vm *Trips) Watch() (<-chan TripChange, func()) {
	ch := make(chan TripChange, watchBuffer)

	vm.mu.Lock()
	vm.watchers[ch] = struct{}{}
	vm.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			vm.mu.Lock()
			defer vm.mu.Unlock()
			if _, ok := vm.watchers[ch]; ok {
				delete(vm.watchers, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// CreateTrip books a trip for the user. The trip starts pending with no
// driver.
func (vm *Trips) CreateTrip(ctx context.Context, req TripRequest) (domain.Trip, error) {
	if err := requireUser(vm.userID, "passenger_id"); err != nil {
		return domain.Trip{}, err
	}
	if err := validatePlace("pickup", req.Pickup); err != nil {
		return domain.Trip{}, err
	}
	if err := validatePlace("destination", req.Destination); err != nil {
		return domain.Trip{}, err
	}
	if !req.VehicleType.Valid() {
		return domain.Trip{}, store.Invalid("vehicle_type", "unknown vehicle type")
	}

	price, _ := domain.BasePrice(req.VehicleType)
	if req.Price != nil {
		price = *req.Price
	}
	if price < 0 {
		return domain.Trip{}, store.Invalid("price", "must not be negative")
	}

	v := store.Values{
		"passenger_id":          vm.userID,
		"pickup_location":       strings.TrimSpace(req.Pickup.Label),
		"pickup_latitude":       req.Pickup.Point.Lat,
		"pickup_longitude":      req.Pickup.Point.Lon,
		"destination_location":  strings.TrimSpace(req.Destination.Label),
		"destination_latitude":  req.Destination.Point.Lat,
		"destination_longitude": req.Destination.Point.Lon,
		"vehicle_type":          req.VehicleType,
		"price":                 price,
		"status":                domain.TripStatusPending,
		"driver_id":             nil,
	}
	if req.ScheduledTime != nil {
		v["scheduled_time"] = req.ScheduledTime.UTC()
	}

	trip, err := vm.trips.Insert(ctx, v)
	if err != nil {
		return domain.Trip{}, err
	}
	vm.acknowledge(realtime.KindInsert, trip)
	return trip, nil
}

func validatePlace(field string, p domain.Place) error {
	if strings.TrimSpace(p.Label) == "" {
		return store.Invalid(field+"_location", "required")
	}
	if !p.Point.Valid() {
		return store.Invalid(field+"_latitude", "coordinates out of range")
	}
	return nil
}

// errLostWrite marks a compare-and-set that matched no row.
var errLostWrite = errors.New("trip changed concurrently")

// current returns the cached trip, or reads it from the store. It reports
// whether the trip came from the cache.
func (vm *Trips) current(ctx context.Context, id string) (domain.Trip, bool, error) {
	vm.mu.RLock()
	t, ok := vm.cache.get(id)
	vm.mu.RUnlock()
	if ok {
		return t, true, nil
	}
	t, err := vm.trips.Get(ctx, id)
	return t, false, err
}

// attempt runs write against the current trip. When the write was refused
// on a cached copy or lost its compare-and-set, the trip is read again and
// the write runs once more against the stored row.
func (vm *Trips) attempt(ctx context.Context, id string, write func(domain.Trip) (domain.Trip, error)) (domain.Trip, error) {
	cur, cached, err := vm.current(ctx, id)
	if err != nil {
		return domain.Trip{}, err
	}

	trip, err := write(cur)
	if err == nil || !(errors.Is(err, errLostWrite) || cached && refused(err)) {
		return trip, err
	}

	fresh, err := vm.trips.Get(ctx, id)
	if err != nil {
		return domain.Trip{}, err
	}
	vm.acknowledge(realtime.KindUpdate, fresh)
	return write(fresh)
}

func refused(err error) bool {
	var it *domain.InvalidTransitionError
	var fe *domain.ForbiddenError
	return errors.As(err, &it) || errors.As(err, &fe)
}

// UpdateTrip writes patch through to the store. A status change must be a
// legal transition from the current status, made by the side of the trip
// that owns it, and is written as a compare-and-set on that status.
func (vm *Trips) UpdateTrip(ctx context.Context, id string, patch TripPatch) (domain.Trip, error) {
	if id == "" {
		return domain.Trip{}, store.Invalid("id", "required")
	}
	if err := requireUser(vm.userID, "user_id"); err != nil {
		return domain.Trip{}, err
	}

	base := store.Values{}
	if patch.Price != nil {
		if *patch.Price < 0 {
			return domain.Trip{}, store.Invalid("price", "must not be negative")
		}
		base["price"] = *patch.Price
	}
	if patch.ScheduledTime != nil {
		base["scheduled_time"] = patch.ScheduledTime.UTC()
	}
	if patch.DriverID != nil {
		if *patch.DriverID == "" {
			return domain.Trip{}, store.Invalid("driver_id", "must not be empty")
		}
		base["driver_id"] = *patch.DriverID
	}
	if patch.Status == nil && len(base) == 0 {
		return domain.Trip{}, store.Invalid("", "nothing to update")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return domain.Trip{}, store.Invalid("status", "unknown status")
	}

	trip, err := vm.attempt(ctx, id, func(cur domain.Trip) (domain.Trip, error) {
		return vm.write(ctx, cur, patch, base)
	})
	if errors.Is(err, errLostWrite) {
		return domain.Trip{}, vm.explainLostWrite(ctx, id, *patch.Status, "status changed concurrently")
	}
	if err != nil {
		return domain.Trip{}, err
	}

	if trip.Status == domain.TripStatusCompleted && patch.Status != nil {
		vm.recordStandings(ctx, trip)
	}
	return trip, nil
}

func (vm *Trips) write(ctx context.Context, cur domain.Trip, patch TripPatch, base store.Values) (domain.Trip, error) {
	if err := vm.authorize(ctx, cur, patch); err != nil {
		return domain.Trip{}, err
	}

	v := make(store.Values, len(base)+2)
	for k, x := range base {
		v[k] = x
	}

	var conds []store.Filter
	if patch.Status != nil {
		to := *patch.Status
		if err := domain.ValidateTransition(cur.Status, to); err != nil {
			return domain.Trip{}, err
		}

		v["status"] = to
		switch to {
		case domain.TripStatusPickedUp:
			v["pickup_time"] = vm.now().UTC()
		case domain.TripStatusCompleted:
			v["completion_time"] = vm.now().UTC()
		}
		conds = append(conds, store.Eq("status", cur.Status))
	}

	trip, err := vm.trips.Update(ctx, cur.ID, v, conds...)
	if err != nil {
		if store.IsNotFound(err) && patch.Status != nil {
			return domain.Trip{}, errLostWrite
		}
		return domain.Trip{}, err
	}
	vm.acknowledge(realtime.KindUpdate, trip)
	return trip, nil
}

// authorize checks that the user may apply patch to cur. The passenger may
// cancel; only the assigned driver moves the trip forward; accepting binds
// one of the user's own driver records.
func (vm *Trips) authorize(ctx context.Context, cur domain.Trip, patch TripPatch) error {
	forbid := func(action string) error {
		return &domain.ForbiddenError{UserID: vm.userID, TripID: cur.ID, Action: action}
	}

	passenger := cur.PassengerID == vm.userID
	driver := false
	if cur.DriverID != nil {
		var err error
		if driver, err = vm.ownsDriver(ctx, *cur.DriverID); err != nil {
			return err
		}
	}

	accepting := patch.Status != nil && *patch.Status == domain.TripStatusAccepted
	if patch.DriverID != nil && (cur.DriverID == nil || *patch.DriverID != *cur.DriverID) && !accepting {
		return store.Invalid("driver_id", "can only be set when accepting")
	}

	if accepting {
		if passenger {
			return forbid("accept own")
		}
		driverID := cur.DriverID
		if patch.DriverID != nil {
			driverID = patch.DriverID
		}
		if driverID == nil {
			return store.Invalid("driver_id", "required to accept a trip")
		}
		owns, err := vm.ownsDriver(ctx, *driverID)
		if err != nil {
			return err
		}
		if !owns {
			return forbid("accept")
		}
		return nil
	}

	if patch.Status == nil {
		if !passenger && !driver {
			return forbid("update")
		}
		return nil
	}

	switch to := *patch.Status; to {
	case domain.TripStatusCancelled:
		if !passenger && !driver {
			return forbid("cancel")
		}
	case domain.TripStatusPickedUp, domain.TripStatusInTransit, domain.TripStatusCompleted:
		if !driver {
			return forbid("move to " + string(to))
		}
	default:
		if !passenger && !driver {
			return forbid("update")
		}
	}
	return nil
}

// ownsDriver reports whether driver record id belongs to the user.
func (vm *Trips) ownsDriver(ctx context.Context, id string) (bool, error) {
	vm.mu.RLock()
	for _, d := range vm.driverIDs {
		if d == id {
			vm.mu.RUnlock()
			return true, nil
		}
	}
	vm.mu.RUnlock()

	found, err := vm.drivers.List(ctx, store.NewQuery().
		Where(store.Eq("id", id), store.Eq("profile_id", vm.userID)).
		WithLimit(1))
	if err != nil {
		return false, err
	}
	if len(found) == 0 {
		return false, nil
	}

	vm.mu.Lock()
	vm.driverIDs = appendMissing(vm.driverIDs, id)
	vm.mu.Unlock()
	return true, nil
}

func appendMissing(ids []string, id string) []string {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

// explainLostWrite re-reads a trip after a failed compare-and-set, to tell a
// missing trip from a status that moved underneath the write.
func (vm *Trips) explainLostWrite(ctx context.Context, id string, to domain.TripStatus, reason string) error {
	fresh, err := vm.trips.Get(ctx, id)
	if err != nil {
		return err
	}
	vm.acknowledge(realtime.KindUpdate, fresh)
	return &domain.InvalidTransitionError{From: fresh.Status, To: to, Reason: reason}
}

// CancelTrip moves a pending or accepted trip to cancelled.
func (vm *Trips) CancelTrip(ctx context.Context, id string) (domain.Trip, error) {
	status := domain.TripStatusCancelled
	return vm.UpdateTrip(ctx, id, TripPatch{Status: &status})
}

// RateTrip records the rating and feedback of one side of a completed trip.
// The side is the user's part in the trip; role only picks one when the
// user is on both sides, and must agree with it otherwise. Each side rates
// once; the other side's pair is never touched.
func (vm *Trips) RateTrip(ctx context.Context, id string, rating int, feedback string, role domain.RatingRole) (domain.Trip, error) {
	if id == "" {
		return domain.Trip{}, store.Invalid("id", "required")
	}
	if err := requireUser(vm.userID, "user_id"); err != nil {
		return domain.Trip{}, err
	}
	if rating < domain.MinRating || rating > domain.MaxRating {
		return domain.Trip{}, store.Invalid("rating", "must be between 1 and 5")
	}
	if role != "" && role != domain.RatingRolePassenger && role != domain.RatingRoleDriver {
		return domain.Trip{}, store.Invalid("role", "must be passenger or driver")
	}

	trip, err := vm.attempt(ctx, id, func(cur domain.Trip) (domain.Trip, error) {
		return vm.rate(ctx, cur, rating, feedback, role)
	})
	if errors.Is(err, errLostWrite) {
		return domain.Trip{}, vm.explainLostWrite(ctx, id, domain.TripStatusCompleted, "rating changed concurrently")
	}
	if err != nil {
		return domain.Trip{}, err
	}

	vm.recordStandings(ctx, trip)
	return trip, nil
}

func (vm *Trips) rate(ctx context.Context, cur domain.Trip, rating int, feedback string, role domain.RatingRole) (domain.Trip, error) {
	role, err := vm.ratingRole(ctx, cur, role)
	if err != nil {
		return domain.Trip{}, err
	}
	if err := checkRatable(cur, role); err != nil {
		return domain.Trip{}, err
	}

	ratingCol, feedbackCol := "passenger_rating", "passenger_feedback"
	if role == domain.RatingRoleDriver {
		ratingCol, feedbackCol = "driver_rating", "driver_feedback"
	}
	v := store.Values{ratingCol: rating, feedbackCol: nil}
	if fb := strings.TrimSpace(feedback); fb != "" {
		v[feedbackCol] = fb
	}

	trip, err := vm.trips.Update(ctx, cur.ID, v, store.Eq("status", domain.TripStatusCompleted), store.IsNull(ratingCol))
	if err != nil {
		if store.IsNotFound(err) {
			return domain.Trip{}, errLostWrite
		}
		return domain.Trip{}, err
	}
	vm.acknowledge(realtime.KindUpdate, trip)
	return trip, nil
}

// ratingRole derives the side the user rates from. An empty role is
// filled in from the trip.
func (vm *Trips) ratingRole(ctx context.Context, t domain.Trip, role domain.RatingRole) (domain.RatingRole, error) {
	passenger := t.PassengerID == vm.userID
	driver := false
	if t.DriverID != nil {
		var err error
		if driver, err = vm.ownsDriver(ctx, *t.DriverID); err != nil {
			return "", err
		}
	}

	switch {
	case role == domain.RatingRolePassenger && passenger, role == domain.RatingRoleDriver && driver:
		return role, nil
	case role == "" && passenger && driver:
		return "", store.Invalid("role", "required when rating your own trip as driver")
	case role == "" && passenger:
		return domain.RatingRolePassenger, nil
	case role == "" && driver:
		return domain.RatingRoleDriver, nil
	case role == "":
		return "", &domain.ForbiddenError{UserID: vm.userID, TripID: t.ID, Action: "rate"}
	default:
		return "", &domain.ForbiddenError{UserID: vm.userID, TripID: t.ID, Action: "rate as " + string(role)}
	}
}

// recordStandings recomputes the rating and trip count of both sides of t.
// The trip write already succeeded, so failures are only logged.
func (vm *Trips) recordStandings(ctx context.Context, t domain.Trip) {
	profiles := []string{t.PassengerID}
	if t.DriverID != nil {
		d, err := vm.drivers.Get(ctx, *t.DriverID)
		switch {
		case err == nil:
			profiles = append(profiles, d.ProfileID)
		case !store.IsNotFound(err):
			vm.log.WithError(err).WithField("driver_id", *t.DriverID).Warn("failed to load driver for standings")
		}
	}

	for _, id := range profiles {
		if err := vm.recordStanding(ctx, id); err != nil {
			vm.log.WithError(err).WithField("profile_id", id).Warn("failed to update profile standing")
		}
	}
}

// recordStanding sets a profile's rating to the running average of the
// ratings it received on completed trips, and raises total_trips to the
// completed count. total_trips never goes down.
func (vm *Trips) recordStanding(ctx context.Context, profileID string) error {
	p, err := vm.profiles.Get(ctx, profileID)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	drivers, err := vm.drivers.List(ctx, store.NewQuery().Where(store.Eq("profile_id", profileID)))
	if err != nil {
		return err
	}
	own := make(map[string]bool, len(drivers))
	ids := make([]string, len(drivers))
	for i, d := range drivers {
		own[d.ID] = true
		ids[i] = d.ID
	}

	q := store.NewQuery().Where(store.Eq("status", domain.TripStatusCompleted))
	if len(ids) == 0 {
		q = q.Where(store.Eq("passenger_id", profileID))
	} else {
		q = q.Or(store.Eq("passenger_id", profileID), store.In("driver_id", store.Strings(ids)...))
	}
	completed, err := vm.trips.List(ctx, q.OrderBy("completion_time", false))
	if err != nil {
		return err
	}

	var avg float64
	n := 0
	for _, t := range completed {
		if t.PassengerID == profileID && t.DriverRating != nil {
			avg = domain.RunningAverage(avg, n, *t.DriverRating)
			n++
		}
		if t.DriverID != nil && own[*t.DriverID] && t.PassengerRating != nil {
			avg = domain.RunningAverage(avg, n, *t.PassengerRating)
			n++
		}
	}

	v := store.Values{}
	if len(completed) > p.TotalTrips {
		v["total_trips"] = len(completed)
	}
	if n > 0 && avg != p.Rating {
		v["rating"] = avg
	}
	if len(v) == 0 {
		return nil
	}
	_, err = vm.profiles.Update(ctx, profileID, v)
	return err
}

func checkRatable(t domain.Trip, role domain.RatingRole) error {
	if t.Status != domain.TripStatusCompleted {
		return &domain.InvalidTransitionError{From: t.Status, To: domain.TripStatusCompleted, Reason: "only completed trips can be rated"}
	}
	if t.Rated(role) {
		return &domain.InvalidTransitionError{From: t.Status, To: t.Status, Reason: "already rated by " + string(role)}
	}
	return nil
}

// Upcoming returns trips that are pending or under way.
func (vm *Trips) Upcoming() []domain.Trip {
	return vm.filter(func(t domain.Trip) bool { return t.Status.Upcoming() })
}

// Completed returns completed trips.
func (vm *Trips) Completed() []domain.Trip {
	return vm.filter(func(t domain.Trip) bool { return t.Status == domain.TripStatusCompleted })
}

// All returns every cached trip, newest first.
func (vm *Trips) All() []domain.Trip {
	return vm.filter(nil)
}

// Get returns a cached trip.
func (vm *Trips) Get(id string) (domain.Trip, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.cache.get(id)
}

func (vm *Trips) filter(keep func(domain.Trip) bool) []domain.Trip {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.cache.filter(keep)
}
