// Package query is the single read surface consumed by dashboard and chatbot
// collaborators. It composes the search index and the change log; every
// operation is a side-effect-free read.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
	"github.com/corpwatch/corpwatch/internal/repository"
	"github.com/corpwatch/corpwatch/internal/search"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// Statistics aggregates index counts and windowed change counts.
type Statistics struct {
	TotalCompanies  int                       `json:"totalCompanies"`
	ActiveCompanies int                       `json:"activeCompanies"`
	TotalChanges    int                       `json:"totalChanges"`
	ChangesByType   map[domain.ChangeType]int `json:"changesByType"`
	StatusCounts    map[string]int            `json:"statusCounts"`
	WindowDays      int                       `json:"windowDays"`
	SnapshotDate    string                    `json:"snapshotDate,omitempty"`
}

// Facade composes the search index, change log, and snapshot metadata behind
// one narrow surface.
type Facade struct {
	index         *search.Index
	changes       repository.ChangeLogRepository
	meta          repository.SnapshotMetaRepository
	defaultWindow int
	now           func() time.Time
}

// NewFacade creates the read facade. defaultStatsWindow is the trailing
// window, in days, used when a statistics caller does not name one; values
// below one fall back to thirty.
func NewFacade(index *search.Index, changes repository.ChangeLogRepository, meta repository.SnapshotMetaRepository, defaultStatsWindow int) *Facade {
	if defaultStatsWindow <= 0 {
		defaultStatsWindow = 30
	}
	return &Facade{
		index:         index,
		changes:       changes,
		meta:          meta,
		defaultWindow: defaultStatsWindow,
		now:           time.Now,
	}
}

// Search looks the query up as an exact identifier first, then as a
// case-insensitive name substring. Results reflect the index generation
// current when the call started.
func (f *Facade) Search(ctx context.Context, queryText string, limit int) ([]domain.Company, error) {
	if queryText == "" {
		return nil, fmt.Errorf("empty search query: %w", domain.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if record, err := f.index.FindByCIN(queryText); err == nil {
		return []domain.Company{record}, nil
	}

	return f.index.FindByNameSubstring(queryText, limit), nil
}

// GetCompany returns the record for one identifier, or ErrNotFound.
func (f *Facade) GetCompany(ctx context.Context, cin string) (domain.Company, error) {
	return f.index.FindByCIN(cin)
}

// GetChanges returns change records within the inclusive date range,
// optionally filtered by type, ordered by change date then CIN.
func (f *Facade) GetChanges(ctx context.Context, start, end time.Time, typeFilter *domain.ChangeType) ([]domain.ChangeRecord, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date before start date: %w", domain.ErrInvalidArgument)
	}
	return f.changes.Query(ctx, start, end, typeFilter)
}

// GetCompanyChanges returns the full change history of one company.
func (f *Facade) GetCompanyChanges(ctx context.Context, cin string) ([]domain.ChangeRecord, error) {
	if domain.NormalizeCIN(cin) == "" {
		return nil, fmt.Errorf("empty cin: %w", domain.ErrInvalidArgument)
	}
	return f.changes.QueryByCIN(ctx, cin)
}

// GetRecentChanges returns the latest detected changes, newest first.
func (f *Facade) GetRecentChanges(ctx context.Context, limit int) ([]domain.ChangeRecord, error) {
	return f.changes.Recent(ctx, limit)
}

// GetSnapshots returns the most recent capture runs, newest first.
func (f *Facade) GetSnapshots(ctx context.Context, limit int) ([]domain.SnapshotMeta, error) {
	return f.meta.List(ctx, limit)
}

// GetStatistics aggregates entity counts from the index and change counts
// from the log over the trailing window. Negative windows are rejected; zero
// selects the configured default.
func (f *Facade) GetStatistics(ctx context.Context, windowDays int) (Statistics, error) {
	if windowDays < 0 {
		return Statistics{}, fmt.Errorf("negative stats window: %w", domain.ErrInvalidArgument)
	}
	if windowDays == 0 {
		windowDays = f.defaultWindow
	}

	end := domain.DateOnly(f.now())
	start := end.AddDate(0, 0, -windowDays)

	counts, err := f.changes.CountByType(ctx, start, end)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to aggregate change counts: %w", err)
	}

	total := 0
	for _, count := range counts {
		total += count
	}

	statusCounts := f.index.CountByStatus()
	stats := Statistics{
		TotalCompanies:  f.index.Size(),
		ActiveCompanies: statusCounts["Active"],
		TotalChanges:    total,
		ChangesByType:   counts,
		StatusCounts:    statusCounts,
		WindowDays:      windowDays,
	}
	if captureDate := f.index.CaptureDate(); !captureDate.IsZero() {
		stats.SnapshotDate = captureDate.Format(domain.DateLayout)
	}

	return stats, nil
}
