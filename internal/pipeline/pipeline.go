// Package pipeline runs the diff+rebuild sequence for each arriving snapshot:
// append to the store, compare against the previous capture, commit the
// change set, swap the search index, archive the snapshot.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/corpwatch/corpwatch/internal/diff"
	"github.com/corpwatch/corpwatch/internal/domain"
	"github.com/corpwatch/corpwatch/internal/repository"
	"github.com/corpwatch/corpwatch/internal/search"
	"github.com/corpwatch/corpwatch/internal/snapshotstore"
)

// Result summarizes one successful pipeline run.
type Result struct {
	CaptureDate  string `json:"captureDate"`
	TotalRecords int    `json:"totalRecords"`
	New          int    `json:"new"`
	Modified     int    `json:"modified"`
	Deleted      int    `json:"deleted"`
}

// Runner orchestrates one diff+rebuild per snapshot arrival. Runs are
// serialized; concurrent reads against the index and change log proceed
// freely while a run is in flight.
type Runner struct {
	mu sync.Mutex

	store   *snapshotstore.Store
	archive *snapshotstore.Archive
	engine  *diff.Engine
	changes repository.ChangeLogRepository
	meta    repository.SnapshotMetaRepository
	index   *search.Index
}

// NewRunner wires the pipeline. archive and meta may be nil in tests; the
// corresponding steps are skipped.
func NewRunner(
	store *snapshotstore.Store,
	archive *snapshotstore.Archive,
	engine *diff.Engine,
	changes repository.ChangeLogRepository,
	meta repository.SnapshotMetaRepository,
	index *search.Index,
) *Runner {
	return &Runner{
		store:   store,
		archive: archive,
		engine:  engine,
		changes: changes,
		meta:    meta,
		index:   index,
	}
}

// Run processes one complete snapshot. The change set is committed to the
// change log before the index swap, so a caller observing new index data can
// always retrieve the changes that produced it. A failure anywhere discards
// the run's partial output: the previously committed change log and the
// active index are left exactly as they were.
func (r *Runner) Run(ctx context.Context, snapshot domain.Snapshot) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	metaID := r.startMeta(ctx, snapshot)

	result, err := r.run(ctx, snapshot)
	if err != nil {
		r.finishMeta(ctx, metaID, domain.SnapshotStatusFailed, "", 0, err.Error())
		return Result{}, err
	}

	filePath := ""
	if r.archive != nil {
		filePath = r.archive.Path(snapshot.CaptureDate)
		if archiveErr := r.archive.Write(snapshot); archiveErr != nil {
			// The committed state is consistent without the file; recovery
			// just loses this capture date.
			log.Printf("[PIPELINE] failed to archive snapshot %s: %v", result.CaptureDate, archiveErr)
			filePath = ""
		}
	}

	r.finishMeta(ctx, metaID, domain.SnapshotStatusSuccess, filePath, snapshot.RecordCount, "")
	return result, nil
}

func (r *Runner) run(ctx context.Context, snapshot domain.Snapshot) (Result, error) {
	older, err := r.store.Latest()
	if err != nil {
		// First capture: diff against an empty snapshot so every record
		// classifies as NEW.
		older = domain.EmptySnapshot(snapshot.CaptureDate.AddDate(0, 0, -1))
	}

	changeSet, err := r.engine.Compare(ctx, older, snapshot)
	if err != nil {
		return Result{}, fmt.Errorf("compare failed: %w", err)
	}

	if err := r.changes.Record(ctx, changeSet); err != nil {
		return Result{}, fmt.Errorf("change log commit failed: %w", err)
	}

	if err := r.store.Append(snapshot); err != nil {
		return Result{}, fmt.Errorf("append failed: %w", err)
	}

	if err := r.index.Rebuild(ctx, snapshot); err != nil {
		return Result{}, fmt.Errorf("index rebuild failed: %w", err)
	}

	counts := changeSet.CountByType()
	result := Result{
		CaptureDate:  snapshot.CaptureDate.Format(domain.DateLayout),
		TotalRecords: snapshot.RecordCount,
		New:          counts[domain.ChangeTypeNew],
		Modified:     counts[domain.ChangeTypeModified],
		Deleted:      counts[domain.ChangeTypeDeleted],
	}
	log.Printf("[PIPELINE] snapshot %s: %d records, %d new, %d modified, %d deleted",
		result.CaptureDate, result.TotalRecords, result.New, result.Modified, result.Deleted)

	return result, nil
}

func (r *Runner) startMeta(ctx context.Context, snapshot domain.Snapshot) int64 {
	if r.meta == nil {
		return 0
	}

	id, err := r.meta.Create(ctx, domain.SnapshotMeta{
		SnapshotDate: snapshot.CaptureDate,
		TotalRecords: snapshot.RecordCount,
		Status:       domain.SnapshotStatusInProgress,
	})
	if err != nil {
		log.Printf("[PIPELINE] failed to create snapshot record: %v", err)
		return 0
	}
	return id
}

func (r *Runner) finishMeta(ctx context.Context, id int64, status domain.SnapshotStatus, filePath string, totalRecords int, errorMessage string) {
	if r.meta == nil || id == 0 {
		return
	}
	if err := r.meta.Finish(ctx, id, status, filePath, totalRecords, errorMessage); err != nil {
		log.Printf("[PIPELINE] failed to finish snapshot record: %v", err)
	}
}

// WarmStart replays archived snapshots into the store and rebuilds the index
// from the most recent one. Change sets are not recomputed; history already
// lives in the change log.
func (r *Runner) WarmStart(ctx context.Context) (int, error) {
	if r.archive == nil {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots, err := r.archive.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to load archived snapshots: %w", err)
	}

	for _, snapshot := range snapshots {
		if err := r.store.Append(snapshot); err != nil {
			return 0, fmt.Errorf("failed to replay snapshot %s: %w",
				snapshot.CaptureDate.Format(domain.DateLayout), err)
		}
	}

	if latest, err := r.store.Latest(); err == nil {
		if err := r.index.Rebuild(ctx, latest); err != nil {
			return 0, fmt.Errorf("failed to rebuild index from archive: %w", err)
		}
	}

	return len(snapshots), nil
}
