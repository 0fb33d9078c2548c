package repository

import (
	"context"

	"waselni/internal/domain"
	"waselni/internal/store"
)

type (
	TripRepository         = Table[domain.Trip]
	DriverRepository       = Table[domain.Driver]
	ProfileRepository      = Table[domain.Profile]
	SafetyReportRepository = Table[domain.SafetyReport]
)

func NewTripRepository(client store.Client) *TripRepository {
	return NewTable[domain.Trip](client, store.Trips)
}

func NewDriverRepository(client store.Client) *DriverRepository {
	return NewTable[domain.Driver](client, store.Drivers)
}

func NewProfileRepository(client store.Client) *ProfileRepository {
	return NewTable[domain.Profile](client, store.Profiles)
}

func NewSafetyReportRepository(client store.Client) *SafetyReportRepository {
	return NewTable[domain.SafetyReport](client, store.SafetyReports)
}

// UniversityRepository reads the static university list.
type UniversityRepository interface {
	// ListActive returns the active universities ordered by name.
	ListActive(ctx context.Context) ([]domain.University, error)
}

type universityTable struct {
	t *Table[domain.University]
}

// NewUniversityRepository creates a UniversityRepository on client.
func NewUniversityRepository(client store.Client) UniversityRepository {
	return &universityTable{t: NewTable[domain.University](client, store.Universities)}
}

func (u *universityTable) ListActive(ctx context.Context) ([]domain.University, error) {
	return u.t.List(ctx, store.NewQuery().Where(store.Eq("is_active", true)).OrderBy("name", false))
}
