// Package snapshotstore holds dated, immutable snapshots in capture order and
// archives them as delimited files for recovery.
package snapshotstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
)

// Store is an append-only, in-memory holder of complete snapshots. Snapshots
// are immutable after append; there is no update or delete here (retention is
// an external policy). Safe for concurrent readers.
type Store struct {
	mu        sync.RWMutex
	snapshots []domain.Snapshot
	byDate    map[time.Time]int
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{byDate: make(map[time.Time]int)}
}

// Append adds a snapshot whose capture date is strictly after the current
// latest. Incomplete or out-of-order snapshots are rejected and the store is
// left unchanged.
func (s *Store) Append(snapshot domain.Snapshot) error {
	if !snapshot.Complete {
		return domain.ErrIncompleteSnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.snapshots) > 0 {
		latest := s.snapshots[len(s.snapshots)-1]
		if !snapshot.CaptureDate.After(latest.CaptureDate) {
			return fmt.Errorf(
				"capture date %s, latest %s: %w",
				snapshot.CaptureDate.Format(domain.DateLayout),
				latest.CaptureDate.Format(domain.DateLayout),
				domain.ErrNonMonotonicSnapshot,
			)
		}
	}

	s.byDate[snapshot.CaptureDate] = len(s.snapshots)
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

// Latest returns the most recently appended snapshot, or ErrNotFound when
// the store is empty.
func (s *Store) Latest() (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return domain.Snapshot{}, fmt.Errorf("no snapshots: %w", domain.ErrNotFound)
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

// Previous returns the snapshot appended immediately before the latest, or
// ErrNotFound when fewer than two snapshots exist.
func (s *Store) Previous() (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) < 2 {
		return domain.Snapshot{}, fmt.Errorf("no previous snapshot: %w", domain.ErrNotFound)
	}
	return s.snapshots[len(s.snapshots)-2], nil
}

// ByDate returns the snapshot captured on the given calendar day, or
// ErrNotFound.
func (s *Store) ByDate(date time.Time) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byDate[domain.DateOnly(date)]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf(
			"no snapshot for %s: %w", date.Format(domain.DateLayout), domain.ErrNotFound)
	}
	return s.snapshots[idx], nil
}

// Len reports how many snapshots the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
