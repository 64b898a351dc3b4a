// Package export renders change windows as spreadsheets for reporting
// collaborators.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/corpwatch/corpwatch/internal/domain"
	"github.com/corpwatch/corpwatch/internal/repository"
)

const sheetName = "Changes"

var columns = []string{
	"CIN",
	"Company Name",
	"Change Type",
	"Change Date",
	"Changed Fields",
	"Old Values",
	"New Values",
}

// Service exports change log windows.
type Service struct {
	changes repository.ChangeLogRepository
}

// NewService creates a new export service.
func NewService(changes repository.ChangeLogRepository) *Service {
	return &Service{changes: changes}
}

// WriteChangesXLSX streams every change in the window into one worksheet.
// Rows arrive pre-ordered from the change log (date, then CIN).
func (s *Service) WriteChangesXLSX(ctx context.Context, w io.Writer, start, end time.Time, typeFilter *domain.ChangeType) error {
	if end.Before(start) {
		return fmt.Errorf("end date before start date: %w", domain.ErrInvalidArgument)
	}

	records, err := s.changes.Query(ctx, start, end, typeFilter)
	if err != nil {
		return fmt.Errorf("failed to load changes for export: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create export sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	headerRow := make([]any, len(columns))
	for i, column := range columns {
		headerRow[i] = column
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return fmt.Errorf("failed to write export header: %w", err)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute export cell: %w", err)
		}
		if err := sw.SetRow(cell, changeRow(record)); err != nil {
			return fmt.Errorf("failed to write export row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func changeRow(record domain.ChangeRecord) []any {
	return []any{
		record.CIN,
		record.CompanyName,
		string(record.Type),
		record.ChangeDate.Format(domain.DateLayout),
		strings.Join(record.ChangedFields, ", "),
		formatValues(record.OldValues, record.ChangedFields),
		formatValues(record.NewValues, record.ChangedFields),
	}
}

// formatValues renders a value map as "field=value" pairs in changed-field
// order, falling back to canonical field order for NEW/DELETED payloads.
func formatValues(values map[string]string, changedFields []string) string {
	if len(values) == 0 {
		return ""
	}

	order := changedFields
	if len(order) == 0 {
		order = domain.FieldNames()
	}

	parts := make([]string, 0, len(values))
	for _, field := range order {
		if value, ok := values[field]; ok {
			parts = append(parts, field+"="+value)
		}
	}
	return strings.Join(parts, "; ")
}
