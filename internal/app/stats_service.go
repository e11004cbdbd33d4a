package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
)

const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)

type StatsService struct {
	repo         *storage.Repository
	dataFile     string
	auditEnabled bool
	now          func() time.Time
}

func NewStatsService(repo *storage.Repository, dataFile string, auditEnabled bool) *StatsService {
	return &StatsService{
		repo:         repo,
		dataFile:     dataFile,
		auditEnabled: auditEnabled,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *StatsService) Stats(_ context.Context) (Stats, error) {
	stats := Stats{
		UniqueStartCities: []string{},
		UniqueEndCities:   []string{},
	}
	starts := map[string]struct{}{}
	ends := map[string]struct{}{}

	records := s.repo.List()
	stats.TotalRecords = len(records)
	for _, rec := range records {
		switch rec.Type() {
		case record.TypeClient:
			stats.Clients++
		case record.TypeAirline:
			stats.Airlines++
		case record.TypeFlight:
			stats.Flights++
			collectCity(rec, FieldStartCity, starts)
			collectCity(rec, FieldEndCity, ends)
		default:
			stats.Untyped++
		}
	}

	stats.UniqueStartCities = sortedKeys(starts)
	stats.UniqueEndCities = sortedKeys(ends)
	next, err := s.repo.NextID()
	if err != nil {
		return stats, fmt.Errorf("stats: %w", err)
	}
	stats.NextID = next
	return stats, nil
}

// Health reports the in-memory collection and the state of the data file.
// A data file that exists but cannot be inspected makes the store unhealthy.
func (s *StatsService) Health(_ context.Context) (Health, error) {
	health := Health{
		Status:      HealthStatusHealthy,
		CheckedAt:   s.now(),
		RecordCount: s.repo.Len(),
		DataFile:    s.dataFile,
		Audit:       s.auditEnabled,
	}

	info, err := os.Stat(s.dataFile)
	switch {
	case err == nil:
		health.FileExists = true
		health.FileSize = info.Size()
	case errors.Is(err, fs.ErrNotExist):
	default:
		health.Status = HealthStatusUnhealthy
		return health, fmt.Errorf("health: stat data file: %w", err)
	}
	return health, nil
}

func collectCity(rec *record.Record, field string, into map[string]struct{}) {
	value, ok := rec.Get(field)
	if !ok || value.IsNull() {
		return
	}
	into[value.Text()] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
