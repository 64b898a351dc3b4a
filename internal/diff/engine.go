// Package diff classifies every company in a pair of adjacent snapshots as
// new, removed, modified, or unchanged, with field-level precision.
package diff

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corpwatch/corpwatch/internal/domain"
)

// minParallelIDs is the common-id count below which the field comparison runs
// on a single goroutine; fan-out overhead dominates under this size.
const minParallelIDs = 4096

// Engine computes classified change sets between two snapshots.
type Engine struct {
	workers int
}

// NewEngine creates a diff engine. workers bounds the fan-out for the
// field-comparison phase; values below one fall back to GOMAXPROCS.
func NewEngine(workers int) *Engine {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{workers: workers}
}

// Compare produces the classified change set between older and newer.
//
// The emitted set partitions ids(older) ∪ ids(newer): every id lands in
// exactly one of NEW, MODIFIED, DELETED, or implicit UNCHANGED. The operation
// is pure and deterministic; comparing the same pair twice yields identical
// output, so a retry after a partial downstream write cannot duplicate or
// lose change records.
//
// Both snapshots must be complete and newer must be captured strictly after
// older, else ErrOutOfOrderSnapshots. A duplicate or missing identifier in
// either snapshot fails the whole compare before any output is produced.
func (e *Engine) Compare(ctx context.Context, older, newer domain.Snapshot) (domain.ChangeSet, error) {
	if !older.Complete || !newer.Complete {
		return domain.ChangeSet{}, domain.ErrIncompleteSnapshot
	}
	if !newer.CaptureDate.After(older.CaptureDate) {
		return domain.ChangeSet{}, fmt.Errorf(
			"older captured %s, newer captured %s: %w",
			older.CaptureDate.Format(domain.DateLayout),
			newer.CaptureDate.Format(domain.DateLayout),
			domain.ErrOutOfOrderSnapshots,
		)
	}

	olderIndex, err := older.IndexByCIN()
	if err != nil {
		return domain.ChangeSet{}, fmt.Errorf("older snapshot: %w", err)
	}
	newerIndex, err := newer.IndexByCIN()
	if err != nil {
		return domain.ChangeSet{}, fmt.Errorf("newer snapshot: %w", err)
	}

	newIDs, deletedIDs, commonIDs := partitionIDs(olderIndex, newerIndex)

	modified, err := e.compareCommon(ctx, commonIDs, olderIndex, newerIndex, newer.CaptureDate)
	if err != nil {
		return domain.ChangeSet{}, err
	}

	records := make([]domain.ChangeRecord, 0, len(newIDs)+len(modified)+len(deletedIDs))
	for _, cin := range newIDs {
		record := newerIndex[cin]
		records = append(records, domain.ChangeRecord{
			CIN:         cin,
			CompanyName: record.CompanyName,
			Type:        domain.ChangeTypeNew,
			ChangeDate:  newer.CaptureDate,
			NewValues:   record.Values(),
		})
	}
	records = append(records, modified...)
	for _, cin := range deletedIDs {
		record := olderIndex[cin]
		records = append(records, domain.ChangeRecord{
			CIN:         cin,
			CompanyName: record.CompanyName,
			Type:        domain.ChangeTypeDeleted,
			ChangeDate:  newer.CaptureDate,
			OldValues:   record.Values(),
		})
	}

	return domain.ChangeSet{
		OlderDate: older.CaptureDate,
		NewerDate: newer.CaptureDate,
		Records:   records,
	}, nil
}

// partitionIDs splits the union of both id sets into new, deleted, and common
// ids using hash-set difference. O(n) over both snapshots; pairwise
// comparison is never performed. Each slice comes back sorted.
func partitionIDs(olderIndex, newerIndex map[string]domain.Company) (newIDs, deletedIDs, commonIDs []string) {
	for cin := range newerIndex {
		if _, exists := olderIndex[cin]; exists {
			commonIDs = append(commonIDs, cin)
		} else {
			newIDs = append(newIDs, cin)
		}
	}
	for cin := range olderIndex {
		if _, exists := newerIndex[cin]; !exists {
			deletedIDs = append(deletedIDs, cin)
		}
	}

	sort.Strings(newIDs)
	sort.Strings(deletedIDs)
	sort.Strings(commonIDs)
	return newIDs, deletedIDs, commonIDs
}

// compareCommon diffs every id present in both snapshots, fanning the sorted
// id space out across workers and fanning partial results back in. Chunks are
// reassembled in id order, keeping the output deterministic regardless of
// scheduling.
func (e *Engine) compareCommon(
	ctx context.Context,
	commonIDs []string,
	olderIndex, newerIndex map[string]domain.Company,
	changeDate time.Time,
) ([]domain.ChangeRecord, error) {
	if len(commonIDs) == 0 {
		return nil, nil
	}

	workers := e.workers
	if len(commonIDs) < minParallelIDs {
		workers = 1
	}
	if workers > len(commonIDs) {
		workers = len(commonIDs)
	}

	chunkSize := (len(commonIDs) + workers - 1) / workers
	chunks := make([][]domain.ChangeRecord, workers)

	group, groupCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(commonIDs) {
			end = len(commonIDs)
		}
		if start >= end {
			break
		}

		group.Go(func() error {
			var records []domain.ChangeRecord
			for _, cin := range commonIDs[start:end] {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				default:
				}

				if record, changed := compareCompanies(cin, olderIndex[cin], newerIndex[cin], changeDate); changed {
					records = append(records, record)
				}
			}
			chunks[w] = records
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("field comparison aborted: %w", err)
	}

	var modified []domain.ChangeRecord
	for _, chunk := range chunks {
		modified = append(modified, chunk...)
	}
	return modified, nil
}

// compareCompanies walks every comparable field in canonical order. Two
// values are equal iff both are present with the same normalized value or
// both are absent; present-vs-absent is a change. Strings compare after
// trimming but keep case, decimals compare by exact value.
func compareCompanies(cin string, older, newer domain.Company, changeDate time.Time) (domain.ChangeRecord, bool) {
	var changedFields []string
	oldValues := make(map[string]string)
	newValues := make(map[string]string)

	for _, field := range domain.ComparableFields() {
		oldValue, oldPresent := older.FieldValue(field)
		newValue, newPresent := newer.FieldValue(field)

		if oldPresent == newPresent && oldValue == newValue {
			continue
		}

		changedFields = append(changedFields, field)
		if oldPresent {
			oldValues[field] = oldValue
		}
		if newPresent {
			newValues[field] = newValue
		}
	}

	if len(changedFields) == 0 {
		return domain.ChangeRecord{}, false
	}

	return domain.ChangeRecord{
		CIN:           cin,
		CompanyName:   newer.CompanyName,
		Type:          domain.ChangeTypeModified,
		ChangeDate:    changeDate,
		ChangedFields: changedFields,
		OldValues:     oldValues,
		NewValues:     newValues,
	}, true
}
