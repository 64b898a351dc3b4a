package snapshotstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
)

const (
	archivePrefix = "snapshot_"
	archiveSuffix = ".csv"
)

// Archive persists one delimited snapshot file per capture date. The header
// names every tracked field with the identifier column first; the format is
// strict on load because archived files are the recovery source of truth.
type Archive struct {
	dir string
}

// NewArchive creates an archive rooted at dir, creating it if needed.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{dir: dir}, nil
}

// Path returns the archive file location for a capture date.
func (a *Archive) Path(date time.Time) string {
	name := archivePrefix + domain.DateOnly(date).Format(domain.DateLayout) + archiveSuffix
	return filepath.Join(a.dir, name)
}

// Write persists the snapshot to its dated file. The file is written whole
// and then renamed into place so a crashed write never leaves a readable
// partial snapshot.
func (a *Archive) Write(snapshot domain.Snapshot) error {
	if !snapshot.Complete {
		return domain.ErrIncompleteSnapshot
	}

	tmp, err := os.CreateTemp(a.dir, archivePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create archive temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	writer := csv.NewWriter(tmp)
	if err := writer.Write(domain.FieldNames()); err != nil {
		return fmt.Errorf("failed to write archive header: %w", err)
	}

	for _, record := range snapshot.Records {
		row := make([]string, 0, len(domain.FieldNames()))
		for _, field := range domain.FieldNames() {
			value, _ := record.FieldValue(field)
			row = append(row, value)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write archive row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), a.Path(snapshot.CaptureDate)); err != nil {
		return fmt.Errorf("failed to install archive file: %w", err)
	}
	return nil
}

// Load reads the snapshot archived for the given capture date.
func (a *Archive) Load(date time.Time) (domain.Snapshot, error) {
	return a.loadFile(a.Path(date), domain.DateOnly(date))
}

// LoadAll reads every archived snapshot in capture-date order, for warm
// starting the store and index after a restart.
func (a *Archive) LoadAll() ([]domain.Snapshot, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var dates []time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := parseArchiveName(entry.Name())
		if !ok {
			continue
		}
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	snapshots := make([]domain.Snapshot, 0, len(dates))
	for _, date := range dates {
		snapshot, err := a.Load(date)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (a *Archive) loadFile(path string, captureDate time.Time) (domain.Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Snapshot{}, fmt.Errorf("archive %s: %w", path, domain.ErrNotFound)
		}
		return domain.Snapshot{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to read archive header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return domain.Snapshot{}, fmt.Errorf("archive %s: %w", path, err)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to read archive rows: %w", err)
	}

	records := make([]domain.Company, 0, len(rows))
	for i, row := range rows {
		values := make(map[string]string, len(header))
		for col, field := range header {
			values[field] = row[col]
		}
		record, err := domain.CompanyFromRow(values)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("archive %s row %d: %w", path, i+2, err)
		}
		records = append(records, record)
	}

	return domain.NewSnapshot(captureDate, records), nil
}

func validateHeader(header []string) error {
	expected := domain.FieldNames()
	if len(header) != len(expected) {
		return fmt.Errorf("header has %d columns, want %d", len(header), len(expected))
	}
	for i, field := range expected {
		if strings.TrimSpace(header[i]) != field {
			return fmt.Errorf("header column %d is %q, want %q", i+1, header[i], field)
		}
	}
	return nil
}

func parseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	date, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return domain.DateOnly(date), true
}
