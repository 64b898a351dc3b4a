package snapshotstore

import (
	"errors"
	"testing"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
)

var (
	day1 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	day3 = time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
)

func TestStoreAppendAndLatest(t *testing.T) {
	store := NewStore()

	if _, err := store.Latest(); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	if err := store.Append(domain.EmptySnapshot(day1)); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if err := store.Append(domain.EmptySnapshot(day2)); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if !latest.CaptureDate.Equal(day2) {
		t.Errorf("expected latest %s, got %s", day2, latest.CaptureDate)
	}

	previous, err := store.Previous()
	if err != nil {
		t.Fatalf("Previous failed: %v", err)
	}
	if !previous.CaptureDate.Equal(day1) {
		t.Errorf("expected previous %s, got %s", day1, previous.CaptureDate)
	}

	if store.Len() != 2 {
		t.Errorf("expected length 2, got %d", store.Len())
	}
}

func TestStoreRejectsNonMonotonicAppend(t *testing.T) {
	store := NewStore()
	if err := store.Append(domain.EmptySnapshot(day2)); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := store.Append(domain.EmptySnapshot(day1)); !errors.Is(err, domain.ErrNonMonotonicSnapshot) {
		t.Fatalf("expected ErrNonMonotonicSnapshot for older date, got %v", err)
	}
	if err := store.Append(domain.EmptySnapshot(day2)); !errors.Is(err, domain.ErrNonMonotonicSnapshot) {
		t.Fatalf("expected ErrNonMonotonicSnapshot for same date, got %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("rejected appends must leave the store unchanged, length %d", store.Len())
	}
}

func TestStoreRejectsIncompleteSnapshot(t *testing.T) {
	store := NewStore()
	snapshot := domain.EmptySnapshot(day1)
	snapshot.Complete = false

	if err := store.Append(snapshot); !errors.Is(err, domain.ErrIncompleteSnapshot) {
		t.Fatalf("expected ErrIncompleteSnapshot, got %v", err)
	}
}

func TestStoreByDate(t *testing.T) {
	store := NewStore()
	for _, date := range []time.Time{day1, day2, day3} {
		if err := store.Append(domain.EmptySnapshot(date)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	snapshot, err := store.ByDate(day2.Add(13 * time.Hour))
	if err != nil {
		t.Fatalf("ByDate failed: %v", err)
	}
	if !snapshot.CaptureDate.Equal(day2) {
		t.Errorf("expected snapshot for %s, got %s", day2, snapshot.CaptureDate)
	}

	if _, err := store.ByDate(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing date, got %v", err)
	}
}
