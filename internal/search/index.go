// Package search serves sub-100ms exact-id and substring-name lookups over
// the latest snapshot without a database round-trip.
package search

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corpwatch/corpwatch/internal/domain"
)

// minParallelRecords is the snapshot size below which the index is built on a
// single goroutine.
const minParallelRecords = 8192

// nameEntry is a derived, read-only projection of one record with its
// precomputed lowercase search keys. Entries are created in bulk during a
// rebuild and discarded in bulk on the next; they are never mutated
// field-by-field.
type nameEntry struct {
	nameKey string
	cinKey  string
	record  domain.Company
}

// state is one fully built generation of the index. Readers pin a generation
// at call start, so a concurrent swap can never produce a torn read.
type state struct {
	byCIN        map[string]domain.Company
	names        []nameEntry
	captureDate  time.Time
	statusCounts map[string]int
}

var emptyState = &state{
	byCIN:        map[string]domain.Company{},
	statusCounts: map[string]int{},
}

// Index is a rebuildable in-memory lookup over the latest snapshot. The
// single mutable resource is the current-generation pointer, updated by a
// single-writer, multiple-reader atomic swap; readers never block the
// writer and vice versa.
type Index struct {
	current atomic.Pointer[state]
	workers int
}

// NewIndex creates an empty index. Lookups against it return ErrNotFound or
// empty results until the first rebuild.
func NewIndex(workers int) *Index {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	idx := &Index{workers: workers}
	idx.current.Store(emptyState)
	return idx
}

// Rebuild replaces the entire index with a projection of the given snapshot.
// The new generation is built completely off to the side and installed with
// one atomic swap; readers in flight keep the generation they started with.
// On any error the active index is left untouched.
func (x *Index) Rebuild(ctx context.Context, snapshot domain.Snapshot) error {
	if !snapshot.Complete {
		return domain.ErrIncompleteSnapshot
	}

	built, err := x.build(ctx, snapshot)
	if err != nil {
		return err
	}

	x.current.Store(built)
	return nil
}

// FindByCIN returns the record for a normalized identifier, or ErrNotFound.
func (x *Index) FindByCIN(cin string) (domain.Company, error) {
	record, ok := x.current.Load().byCIN[domain.NormalizeCIN(cin)]
	if !ok {
		return domain.Company{}, fmt.Errorf("cin %s: %w", cin, domain.ErrNotFound)
	}
	return record, nil
}

// FindByNameSubstring returns up to limit records whose name or identifier
// contains the query, case-insensitively, in snapshot record order. The scan
// is O(n) over the current snapshot by design; sub-linear substring search
// would need an inverted or trigram index the workload does not justify.
func (x *Index) FindByNameSubstring(query string, limit int) []domain.Company {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" || limit <= 0 {
		return nil
	}

	entries := x.current.Load().names
	matches := make([]domain.Company, 0, limit)
	for i := range entries {
		if strings.Contains(entries[i].nameKey, key) || strings.Contains(entries[i].cinKey, key) {
			matches = append(matches, entries[i].record)
			if len(matches) == limit {
				break
			}
		}
	}
	return matches
}

// Size reports how many records the active generation holds.
func (x *Index) Size() int {
	return len(x.current.Load().byCIN)
}

// CaptureDate reports the capture date of the indexed snapshot; zero before
// the first rebuild.
func (x *Index) CaptureDate() time.Time {
	return x.current.Load().captureDate
}

// CountByStatus returns a copy of the per-status record counts.
func (x *Index) CountByStatus() map[string]int {
	counts := x.current.Load().statusCounts
	out := make(map[string]int, len(counts))
	for status, count := range counts {
		out[status] = count
	}
	return out
}

// build constructs a complete generation in one pass over the snapshot,
// partitioning the record space across workers and merging the partial
// results in record order.
func (x *Index) build(ctx context.Context, snapshot domain.Snapshot) (*state, error) {
	records := snapshot.Records

	workers := x.workers
	if len(records) < minParallelRecords {
		workers = 1
	}
	if workers > len(records) {
		workers = 1
	}

	type partial struct {
		entries []nameEntry
	}

	chunkSize := (len(records) + workers - 1) / workers
	partials := make([]partial, workers)

	group, groupCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		if start >= end {
			break
		}

		group.Go(func() error {
			entries := make([]nameEntry, 0, end-start)
			for _, record := range records[start:end] {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				default:
				}

				cin := domain.NormalizeCIN(record.CIN)
				if cin == "" {
					return domain.ErrMissingIdentifier
				}
				entries = append(entries, nameEntry{
					nameKey: strings.ToLower(record.CompanyName),
					cinKey:  strings.ToLower(cin),
					record:  record,
				})
			}
			partials[w] = partial{entries: entries}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("index build aborted: %w", err)
	}

	built := &state{
		byCIN:        make(map[string]domain.Company, len(records)),
		names:        make([]nameEntry, 0, len(records)),
		captureDate:  snapshot.CaptureDate,
		statusCounts: make(map[string]int),
	}
	for _, part := range partials {
		for _, entry := range part.entries {
			cin := domain.NormalizeCIN(entry.record.CIN)
			if _, exists := built.byCIN[cin]; exists {
				return nil, fmt.Errorf("cin %s: %w", cin, domain.ErrDuplicateIdentifier)
			}
			built.byCIN[cin] = entry.record
			built.names = append(built.names, entry)
			if status := strings.TrimSpace(entry.record.CompanyStatus); status != "" {
				built.statusCounts[status]++
			}
		}
	}

	return built, nil
}
