package domain

import "errors"

// Sentinel errors shared across the core. Callers match them with errors.Is
// after layers have wrapped them with context.
var (
	// ErrNotFound signals a lookup miss. It is a normal empty result, not a
	// failure condition.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument signals a bad query parameter supplied by a caller.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfOrderSnapshots is returned by the diff engine when the newer
	// snapshot does not strictly follow the older one.
	ErrOutOfOrderSnapshots = errors.New("snapshots out of order")

	// ErrNonMonotonicSnapshot is returned by the snapshot store when an
	// appended snapshot's capture date is not strictly after the current
	// latest.
	ErrNonMonotonicSnapshot = errors.New("snapshot capture date not after current latest")

	// ErrDuplicateIdentifier signals two records sharing one CIN within a
	// single snapshot. The whole operation fails; no record is picked.
	ErrDuplicateIdentifier = errors.New("duplicate company identifier")

	// ErrMissingIdentifier signals a record without a CIN.
	ErrMissingIdentifier = errors.New("missing company identifier")

	// ErrIncompleteSnapshot signals a snapshot used before its complete
	// marker was set.
	ErrIncompleteSnapshot = errors.New("snapshot is not complete")
)
