package viewmodel

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"waselni/internal/domain"
	"waselni/internal/realtime"
	"waselni/internal/repository"
	"waselni/internal/store"
)

const maxReportLength = 2000

// ReportRequest is a new safety report.
type ReportRequest struct {
	Type        domain.ReportType
	Description string
	TripID      *string
	DriverID    *string
}

// Reports is the list of safety reports filed by one user.
type Reports struct {
	userID string
	repo   *repository.SafetyReportRepository
	source realtime.Source
	log    logrus.FieldLogger

	mu    sync.RWMutex
	cache *ordered[domain.SafetyReport]

	subs listeners
}

func NewReports(userID string, client store.Client, source realtime.Source, log logrus.FieldLogger) *Reports {
	return &Reports{
		userID: userID,
		repo:   repository.NewSafetyReportRepository(client),
		source: source,
		log:    log.WithFields(logrus.Fields{"view": "reports", "user_id": userID}),
		cache: newOrdered(
			func(r domain.SafetyReport) string { return r.ID },
			func(r domain.SafetyReport) time.Time { return r.CreatedAt },
			func(r domain.SafetyReport) time.Time { return r.UpdatedAt },
		),
	}
}

func (vm *Reports) Refresh(ctx context.Context) error {
	if err := requireUser(vm.userID, "reporter_id"); err != nil {
		return err
	}

	vm.mu.Lock()
	vm.cache.begin()
	vm.mu.Unlock()

	list, err := vm.repo.List(ctx, store.NewQuery().
		Where(store.Eq("reporter_id", vm.userID)).
		OrderBy("created_at", true))

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err != nil {
		vm.cache.abort()
		logRefreshFailure(vm.log, store.SafetyReports, err)
		return err
	}
	vm.cache.finish(list)
	return nil
}

// Activate follows moderation status changes of the user's reports.
func (vm *Reports) Activate(ctx context.Context) error {
	if err := requireUser(vm.userID, "reporter_id"); err != nil {
		return err
	}
	sub := realtime.Subscription{Collection: store.SafetyReports, Filter: "reporter_id=eq." + vm.userID}
	if err := vm.subs.start(ctx, vm.source, sub, vm.apply, resyncWith(vm.log, vm.Refresh), vm.log); err != nil {
		vm.log.WithError(err).Warn("report subscription failed")
		return err
	}
	return nil
}

func (vm *Reports) Deactivate() {
	vm.subs.stopAll()
}

func (vm *Reports) apply(e realtime.Event) {
	var r domain.SafetyReport
	if err := e.Decode(&r); err != nil || r.ID == "" {
		vm.log.WithField("kind", e.Kind).Warn("ignoring undecodable report event")
		return
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if e.Kind == realtime.KindDelete {
		vm.cache.remove(r.ID)
		return
	}
	vm.cache.upsert(r)
}

// Submit files a new report. Its status starts pending and is changed only
// by moderation.
func (vm *Reports) Submit(ctx context.Context, req ReportRequest) (domain.SafetyReport, error) {
	if err := requireUser(vm.userID, "reporter_id"); err != nil {
		return domain.SafetyReport{}, err
	}
	if !req.Type.Valid() {
		return domain.SafetyReport{}, store.Invalid("report_type", "unknown report type")
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return domain.SafetyReport{}, store.Invalid("description", "required")
	}
	if utf8.RuneCountInString(desc) > maxReportLength {
		return domain.SafetyReport{}, store.Invalid("description", "too long")
	}

	v := store.Values{
		"reporter_id": vm.userID,
		"report_type": req.Type,
		"description": desc,
	}
	if req.TripID != nil && *req.TripID != "" {
		v["trip_id"] = *req.TripID
	}
	if req.DriverID != nil && *req.DriverID != "" {
		v["driver_id"] = *req.DriverID
	}

	r, err := vm.repo.Insert(ctx, v)
	if err != nil {
		return domain.SafetyReport{}, err
	}
	vm.mu.Lock()
	vm.cache.upsert(r)
	vm.mu.Unlock()
	return r, nil
}

// All returns the user's reports, newest first.
func (vm *Reports) All() []domain.SafetyReport {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.cache.filter(nil)
}
