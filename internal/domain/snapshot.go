package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotStatus tracks the lifecycle of one capture run in the metadata
// store.
type SnapshotStatus string

const (
	SnapshotStatusInProgress SnapshotStatus = "IN_PROGRESS"
	SnapshotStatusSuccess    SnapshotStatus = "SUCCESS"
	SnapshotStatusFailed     SnapshotStatus = "FAILED"
)

// Snapshot is an immutable, dated, complete enumeration of all tracked
// companies at one point in time. A new capture always produces a new
// snapshot object; record sets are never edited in place.
type Snapshot struct {
	ID          uuid.UUID
	CaptureDate time.Time
	Records     []Company
	RecordCount int
	Complete    bool
	CreatedAt   time.Time
}

// NewSnapshot creates a complete snapshot from a finished record enumeration.
// The record slice is copied so later caller mutations cannot leak in.
func NewSnapshot(captureDate time.Time, records []Company) Snapshot {
	copied := make([]Company, len(records))
	copy(copied, records)

	return Snapshot{
		ID:          uuid.New(),
		CaptureDate: DateOnly(captureDate),
		Records:     copied,
		RecordCount: len(copied),
		Complete:    true,
		CreatedAt:   time.Now(),
	}
}

// EmptySnapshot creates a complete snapshot with no records. The diff engine
// compares the first real capture against one of these, classifying every
// record as NEW.
func EmptySnapshot(captureDate time.Time) Snapshot {
	return Snapshot{
		ID:          uuid.New(),
		CaptureDate: DateOnly(captureDate),
		Records:     []Company{},
		Complete:    true,
		CreatedAt:   time.Now(),
	}
}

// IndexByCIN builds an id-keyed lookup over the snapshot's records. A record
// without an identifier or two records sharing one identifier fail the whole
// build; the caller must not fall back to picking one of the duplicates.
func (s Snapshot) IndexByCIN() (map[string]Company, error) {
	index := make(map[string]Company, len(s.Records))
	for i, record := range s.Records {
		cin := NormalizeCIN(record.CIN)
		if cin == "" {
			return nil, fmt.Errorf("record %d: %w", i, ErrMissingIdentifier)
		}
		if _, exists := index[cin]; exists {
			return nil, fmt.Errorf("cin %s: %w", cin, ErrDuplicateIdentifier)
		}
		index[cin] = record
	}
	return index, nil
}

// SnapshotMeta is the durable bookkeeping row for one capture run.
type SnapshotMeta struct {
	ID           int64
	SnapshotDate time.Time
	FilePath     string
	TotalRecords int
	Status       SnapshotStatus
	ErrorMessage string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}
