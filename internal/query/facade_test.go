package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
	"github.com/corpwatch/corpwatch/internal/search"
)

var day1 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

// fakeChangeLog is an in-memory ChangeLogRepository for facade tests.
type fakeChangeLog struct {
	records []domain.ChangeRecord

	queryStart time.Time
	queryEnd   time.Time
	queryType  *domain.ChangeType
}

func (f *fakeChangeLog) Record(ctx context.Context, changeSet domain.ChangeSet) error {
	f.records = append(f.records, changeSet.Records...)
	return nil
}

func (f *fakeChangeLog) Query(ctx context.Context, start, end time.Time, typeFilter *domain.ChangeType) ([]domain.ChangeRecord, error) {
	f.queryStart, f.queryEnd, f.queryType = start, end, typeFilter

	var out []domain.ChangeRecord
	for _, record := range f.records {
		if record.ChangeDate.Before(start) || record.ChangeDate.After(end) {
			continue
		}
		if typeFilter != nil && record.Type != *typeFilter {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeChangeLog) QueryByCIN(ctx context.Context, cin string) ([]domain.ChangeRecord, error) {
	normalized := domain.NormalizeCIN(cin)
	var out []domain.ChangeRecord
	for _, record := range f.records {
		if record.CIN == normalized {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeChangeLog) Recent(ctx context.Context, limit int) ([]domain.ChangeRecord, error) {
	if limit <= 0 || limit > len(f.records) {
		limit = len(f.records)
	}
	out := make([]domain.ChangeRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = f.records[len(f.records)-1-i]
	}
	return out, nil
}

func (f *fakeChangeLog) CountByType(ctx context.Context, start, end time.Time) (map[domain.ChangeType]int, error) {
	counts := map[domain.ChangeType]int{
		domain.ChangeTypeNew:      0,
		domain.ChangeTypeModified: 0,
		domain.ChangeTypeDeleted:  0,
	}
	records, _ := f.Query(ctx, start, end, nil)
	for _, record := range records {
		counts[record.Type]++
	}
	return counts, nil
}

// fakeMetaRepo is an in-memory SnapshotMetaRepository for facade tests.
type fakeMetaRepo struct {
	metas     []domain.SnapshotMeta
	listLimit int
}

func (f *fakeMetaRepo) Create(ctx context.Context, meta domain.SnapshotMeta) (int64, error) {
	f.metas = append(f.metas, meta)
	return int64(len(f.metas)), nil
}

func (f *fakeMetaRepo) Finish(ctx context.Context, id int64, status domain.SnapshotStatus, filePath string, totalRecords int, errorMessage string) error {
	return nil
}

func (f *fakeMetaRepo) List(ctx context.Context, limit int) ([]domain.SnapshotMeta, error) {
	f.listLimit = limit
	return f.metas, nil
}

func testFacade(t *testing.T, changes *fakeChangeLog) *Facade {
	return testFacadeWindow(t, changes, &fakeMetaRepo{}, 0)
}

func testFacadeWindow(t *testing.T, changes *fakeChangeLog, meta *fakeMetaRepo, statsWindow int) *Facade {
	t.Helper()
	index := search.NewIndex(1)
	snapshot := domain.NewSnapshot(day1, []domain.Company{
		{CIN: "L17110MH1973PLC019786", CompanyName: "Reliant Textiles Ltd", CompanyStatus: "Active"},
		{CIN: "U12345DL2001PTC000001", CompanyName: "Acme Industries Ltd", CompanyStatus: "Strike Off"},
	})
	if err := index.Rebuild(context.Background(), snapshot); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	facade := NewFacade(index, changes, meta, statsWindow)
	facade.now = func() time.Time { return day1 }
	return facade
}

func TestSearchExactCINBeatsSubstring(t *testing.T) {
	facade := testFacade(t, &fakeChangeLog{})

	results, err := facade.Search(context.Background(), "l17110mh1973plc019786", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].CompanyName != "Reliant Textiles Ltd" {
		t.Fatalf("expected exact CIN hit, got %+v", results)
	}
}

func TestSearchFallsBackToSubstring(t *testing.T) {
	facade := testFacade(t, &fakeChangeLog{})

	results, err := facade.Search(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].CIN != "U12345DL2001PTC000001" {
		t.Fatalf("expected substring hit, got %+v", results)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	facade := testFacade(t, &fakeChangeLog{})

	if _, err := facade.Search(context.Background(), "", 10); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGetCompanyNotFound(t *testing.T) {
	facade := testFacade(t, &fakeChangeLog{})

	if _, err := facade.GetCompany(context.Background(), "U00000XX0000XXX000000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetChangesRejectsInvertedRange(t *testing.T) {
	facade := testFacade(t, &fakeChangeLog{})

	_, err := facade.GetChanges(context.Background(), day1, day1.AddDate(0, 0, -1), nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGetCompanyChangesRejectsEmptyCIN(t *testing.T) {
	facade := testFacade(t, &fakeChangeLog{})

	if _, err := facade.GetCompanyChanges(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGetStatistics(t *testing.T) {
	changes := &fakeChangeLog{records: []domain.ChangeRecord{
		{CIN: "U1", Type: domain.ChangeTypeNew, ChangeDate: day1},
		{CIN: "U2", Type: domain.ChangeTypeModified, ChangeDate: day1.AddDate(0, 0, -3)},
		{CIN: "U3", Type: domain.ChangeTypeDeleted, ChangeDate: day1.AddDate(0, 0, -40)},
	}}
	facade := testFacade(t, changes)

	stats, err := facade.GetStatistics(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}

	if stats.WindowDays != 30 {
		t.Errorf("expected default 30-day window, got %d", stats.WindowDays)
	}
	if stats.TotalCompanies != 2 || stats.ActiveCompanies != 1 {
		t.Errorf("unexpected company counts: %+v", stats)
	}
	// The 40-day-old DELETED record falls outside the window.
	if stats.TotalChanges != 2 {
		t.Errorf("expected 2 changes in window, got %d", stats.TotalChanges)
	}
	if stats.ChangesByType[domain.ChangeTypeDeleted] != 0 {
		t.Errorf("expected zero DELETED in window, got %d", stats.ChangesByType[domain.ChangeTypeDeleted])
	}
	if stats.SnapshotDate != "2026-08-01" {
		t.Errorf("expected snapshot date 2026-08-01, got %q", stats.SnapshotDate)
	}
}

func TestGetStatisticsUsesConfiguredDefaultWindow(t *testing.T) {
	changes := &fakeChangeLog{}
	facade := testFacadeWindow(t, changes, &fakeMetaRepo{}, 14)

	stats, err := facade.GetStatistics(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.WindowDays != 14 {
		t.Errorf("expected configured 14-day window, got %d", stats.WindowDays)
	}
	if !changes.queryStart.Equal(day1.AddDate(0, 0, -14)) {
		t.Errorf("expected query window to start 14 days back, got %s", changes.queryStart)
	}

	// An explicit window still wins over the configured default.
	stats, err = facade.GetStatistics(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.WindowDays != 7 {
		t.Errorf("expected explicit 7-day window, got %d", stats.WindowDays)
	}
}

func TestGetSnapshots(t *testing.T) {
	completed := day1.Add(6 * time.Hour)
	meta := &fakeMetaRepo{metas: []domain.SnapshotMeta{
		{
			ID:           1,
			SnapshotDate: day1,
			FilePath:     "data/snapshots/snapshot_2026-08-01.csv",
			TotalRecords: 2,
			Status:       domain.SnapshotStatusSuccess,
			CompletedAt:  &completed,
		},
	}}
	facade := testFacadeWindow(t, &fakeChangeLog{}, meta, 0)

	metas, err := facade.GetSnapshots(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetSnapshots failed: %v", err)
	}
	if len(metas) != 1 || metas[0].Status != domain.SnapshotStatusSuccess {
		t.Fatalf("unexpected snapshot list: %+v", metas)
	}
	if meta.listLimit != 5 {
		t.Errorf("expected limit 5 passed through, got %d", meta.listLimit)
	}
}

func TestGetStatisticsNegativeWindow(t *testing.T) {
	facade := testFacade(t, &fakeChangeLog{})

	if _, err := facade.GetStatistics(context.Background(), -1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
