package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/corpwatch/corpwatch/internal/domain"
)

var (
	day1 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)
)

type stubChangeLog struct {
	records []domain.ChangeRecord
}

func (s *stubChangeLog) Record(ctx context.Context, changeSet domain.ChangeSet) error { return nil }

func (s *stubChangeLog) Query(ctx context.Context, start, end time.Time, typeFilter *domain.ChangeType) ([]domain.ChangeRecord, error) {
	return s.records, nil
}

func (s *stubChangeLog) QueryByCIN(ctx context.Context, cin string) ([]domain.ChangeRecord, error) {
	return nil, nil
}

func (s *stubChangeLog) Recent(ctx context.Context, limit int) ([]domain.ChangeRecord, error) {
	return nil, nil
}

func (s *stubChangeLog) CountByType(ctx context.Context, start, end time.Time) (map[domain.ChangeType]int, error) {
	return nil, nil
}

func TestWriteChangesXLSX(t *testing.T) {
	changes := &stubChangeLog{records: []domain.ChangeRecord{
		{
			CIN:           "U12345DL2001PTC000001",
			CompanyName:   "Acme Industries Ltd",
			Type:          domain.ChangeTypeModified,
			ChangeDate:    day1,
			ChangedFields: []string{domain.FieldCompanyStatus},
			OldValues:     map[string]string{domain.FieldCompanyStatus: "Active"},
			NewValues:     map[string]string{domain.FieldCompanyStatus: "Strike Off"},
		},
		{
			CIN:         "U12345DL2001PTC000002",
			CompanyName: "Beta Traders Ltd",
			Type:        domain.ChangeTypeNew,
			ChangeDate:  day2,
			NewValues: map[string]string{
				domain.FieldCIN:         "U12345DL2001PTC000002",
				domain.FieldCompanyName: "Beta Traders Ltd",
			},
		},
	}}
	service := NewService(changes)

	var buf bytes.Buffer
	if err := service.WriteChangesXLSX(context.Background(), &buf, day1, day2, nil); err != nil {
		t.Fatalf("WriteChangesXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}

	if rows[0][0] != "CIN" || rows[0][2] != "Change Type" {
		t.Errorf("unexpected header row: %v", rows[0])
	}
	if rows[1][0] != "U12345DL2001PTC000001" || rows[1][2] != "MODIFIED" {
		t.Errorf("unexpected first row: %v", rows[1])
	}
	if rows[1][5] != "company_status=Active" || rows[1][6] != "company_status=Strike Off" {
		t.Errorf("unexpected value columns: %v", rows[1])
	}
	if rows[2][2] != "NEW" {
		t.Errorf("unexpected second row: %v", rows[2])
	}
}

func TestWriteChangesXLSXRejectsInvertedRange(t *testing.T) {
	service := NewService(&stubChangeLog{})

	err := service.WriteChangesXLSX(context.Background(), &bytes.Buffer{}, day2, day1, nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestFormatValuesFollowsChangedFieldOrder(t *testing.T) {
	values := map[string]string{
		"paidup_capital": "0",
		"company_status": "Strike Off",
	}
	got := formatValues(values, []string{"company_status", "paidup_capital"})
	if got != "company_status=Strike Off; paidup_capital=0" {
		t.Errorf("unexpected rendering %q", got)
	}

	if got := formatValues(nil, nil); got != "" {
		t.Errorf("expected empty rendering, got %q", got)
	}
}
