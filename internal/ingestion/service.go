// Package ingestion turns uploaded registry extracts into complete snapshots
// and feeds them through the diff pipeline.
package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/corpwatch/corpwatch/internal/domain"
	"github.com/corpwatch/corpwatch/internal/pipeline"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// headerAliases maps sanitized upstream column labels to canonical field
// names. Registry extracts are inconsistent about labels across vintages.
var headerAliases = map[string]string{
	"cin":                             domain.FieldCIN,
	"corporate_identification_number": domain.FieldCIN,
	"company_name":                    domain.FieldCompanyName,
	"name_of_company":                 domain.FieldCompanyName,
	"company_roc_code":                domain.FieldROCCode,
	"roc_code":                        domain.FieldROCCode,
	"roc":                             domain.FieldROCCode,
	"company_category":                domain.FieldCategory,
	"category":                        domain.FieldCategory,
	"company_sub_category":            domain.FieldSubCategory,
	"sub_category":                    domain.FieldSubCategory,
	"company_class":                   domain.FieldClass,
	"class":                           domain.FieldClass,
	"authorized_capital":              domain.FieldAuthorizedCapital,
	"authorised_capital":              domain.FieldAuthorizedCapital,
	"paidup_capital":                  domain.FieldPaidUpCapital,
	"paid_up_capital":                 domain.FieldPaidUpCapital,
	"registration_date":               domain.FieldRegistrationDate,
	"date_of_registration":            domain.FieldRegistrationDate,
	"registered_office_address":       domain.FieldRegisteredOfficeAddress,
	"registered_address":              domain.FieldRegisteredOfficeAddress,
	"listing_status":                  domain.FieldListingStatus,
	"company_status":                  domain.FieldCompanyStatus,
	"status":                          domain.FieldCompanyStatus,
	"company_state_code":              domain.FieldStateCode,
	"state_code":                      domain.FieldStateCode,
	"state":                           domain.FieldStateCode,
	"company_type":                    domain.FieldCompanyType,
	"nic_code":                        domain.FieldNICCode,
	"industrial_classification":       domain.FieldIndustrialClassification,
	"industrial_class":                domain.FieldIndustrialClassification,
}

// Service parses uploaded extracts and runs the snapshot pipeline.
type Service struct {
	runner *pipeline.Runner
}

// NewService creates a new ingestion service.
func NewService(runner *pipeline.Runner) *Service {
	return &Service{runner: runner}
}

// Request describes one uploaded snapshot.
type Request struct {
	CaptureDate time.Time
	FileName    string
	Data        io.Reader
}

// RowError captures one rejected input row.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// Summary returns ingestion and pipeline level metrics.
type Summary struct {
	CaptureDate string          `json:"captureDate"`
	FileName    string          `json:"fileName"`
	TotalRows   int             `json:"totalRows"`
	ValidRows   int             `json:"validRows"`
	InvalidRows int             `json:"invalidRows"`
	RowErrors   []RowError      `json:"rowErrors,omitempty"`
	Pipeline    pipeline.Result `json:"pipeline"`
}

// tableRow keeps each data row paired with its 1-based position in the
// source file, so row errors point at the physical row even when blank rows
// were skipped.
type tableRow struct {
	number int
	values []string
}

type tableData struct {
	headers []string
	rows    []tableRow
}

// Ingest reads the uploaded file, builds a complete snapshot from its valid
// rows, and runs the diff+rebuild pipeline. Malformed rows are rejected and
// reported, never silently coerced; structural violations (duplicate CIN,
// out-of-order capture date) abort the whole run with nothing persisted.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	summary := Summary{
		CaptureDate: domain.DateOnly(req.CaptureDate).Format(domain.DateLayout),
		FileName:    req.FileName,
	}

	if req.CaptureDate.IsZero() {
		return summary, fmt.Errorf("capture date is required: %w", domain.ErrInvalidArgument)
	}
	if req.Data == nil {
		return summary, fmt.Errorf("data reader is required: %w", domain.ErrInvalidArgument)
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, fmt.Errorf("file is empty: %w", domain.ErrInvalidArgument)
	}

	table, err := parseTable(req.FileName, payload)
	if err != nil {
		return summary, err
	}

	fieldsByColumn := mapHeaders(table.headers)
	if _, hasID := columnFor(fieldsByColumn, domain.FieldCIN); !hasID {
		return summary, fmt.Errorf("no %s column detected: %w", domain.FieldCIN, domain.ErrMissingIdentifier)
	}

	summary.TotalRows = len(table.rows)
	records := make([]domain.Company, 0, len(table.rows))

	for _, row := range table.rows {
		values := make(map[string]string)
		for colIdx, field := range fieldsByColumn {
			if field == "" || colIdx >= len(row.values) {
				continue
			}
			values[field] = row.values[colIdx]
		}

		record, err := domain.CompanyFromRow(values)
		if err != nil {
			summary.InvalidRows++
			summary.RowErrors = append(summary.RowErrors, RowError{RowNumber: row.number, Message: err.Error()})
			log.Printf("[INGEST] %s row %d rejected: %v", req.FileName, row.number, err)
			continue
		}
		records = append(records, record)
	}
	summary.ValidRows = len(records)

	if summary.ValidRows == 0 {
		return summary, fmt.Errorf("no valid records in upload: %w", domain.ErrInvalidArgument)
	}

	snapshot := domain.NewSnapshot(req.CaptureDate, records)
	result, err := s.runner.Run(ctx, snapshot)
	if err != nil {
		return summary, err
	}
	summary.Pipeline = result

	return summary, nil
}

func parseTable(fileName string, payload []byte) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return tableData{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return normalizeTable(records)
}

func parseExcel(payload []byte) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return normalizeTable(rows)
}

// normalizeTable picks the first non-empty row as the header and drops blank
// rows, keeping each surviving row's original 1-based position. Short data
// rows are padded so column indexes stay aligned.
func normalizeTable(records [][]string) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, errors.New("no rows found in file")
	}

	var headers []string
	var rows []tableRow

	for idx, row := range records {
		if isEmptyRow(row) {
			continue
		}
		if headers == nil {
			headers = sanitizeHeaders(row)
			continue
		}
		rows = append(rows, tableRow{
			number: idx + 1,
			values: padRow(row, len(headers)),
		})
	}

	if headers == nil {
		return tableData{}, errors.New("no header row detected")
	}

	return tableData{
		headers: headers,
		rows:    rows,
	}, nil
}

// mapHeaders resolves each sanitized header to a canonical field name; blank
// entries mark columns outside the tracked schema, which are skipped.
func mapHeaders(headers []string) []string {
	fields := make([]string, len(headers))
	for i, header := range headers {
		fields[i] = headerAliases[header]
	}
	return fields
}

func columnFor(fieldsByColumn []string, field string) (int, bool) {
	for i, name := range fieldsByColumn {
		if name == field {
			return i, true
		}
	}
	return 0, false
}

func sanitizeHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, value := range row {
		header := strings.ToLower(strings.TrimSpace(value))
		var builder strings.Builder
		lastUnderscore := false
		for _, r := range header {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				builder.WriteRune(r)
				lastUnderscore = false
			default:
				if !lastUnderscore && builder.Len() > 0 {
					builder.WriteByte('_')
					lastUnderscore = true
				}
			}
		}
		headers[i] = strings.TrimSuffix(builder.String(), "_")
	}
	return headers
}

func isEmptyRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
