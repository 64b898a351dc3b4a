package domain

import (
	"fmt"
	"strings"
	"time"
)

// ChangeType classifies one detected difference between adjacent snapshots.
type ChangeType string

const (
	ChangeTypeNew      ChangeType = "NEW"
	ChangeTypeModified ChangeType = "MODIFIED"
	ChangeTypeDeleted  ChangeType = "DELETED"
)

// ParseChangeType validates a caller-supplied type filter.
func ParseChangeType(raw string) (ChangeType, error) {
	switch ChangeType(strings.ToUpper(strings.TrimSpace(raw))) {
	case ChangeTypeNew:
		return ChangeTypeNew, nil
	case ChangeTypeModified:
		return ChangeTypeModified, nil
	case ChangeTypeDeleted:
		return ChangeTypeDeleted, nil
	default:
		return "", fmt.Errorf("unknown change type %q: %w", raw, ErrInvalidArgument)
	}
}

// ChangeRecord is one classified difference for one company.
//
// ChangedFields is non-empty iff Type is MODIFIED, and then OldValues and
// NewValues carry exactly the changed fields. NEW records carry the full
// newer record in NewValues; DELETED records carry the full older record in
// OldValues.
type ChangeRecord struct {
	CIN           string            `json:"cin"`
	CompanyName   string            `json:"company_name"`
	Type          ChangeType        `json:"change_type"`
	ChangeDate    time.Time         `json:"change_date"`
	ChangedFields []string          `json:"changed_fields,omitempty"`
	OldValues     map[string]string `json:"old_values,omitempty"`
	NewValues     map[string]string `json:"new_values,omitempty"`
}

// ChangeSet is the complete classified output of one snapshot-pair diff.
// Records are deterministically ordered: NEW, then MODIFIED, then DELETED,
// each sorted by CIN, so re-running the same compare yields identical output.
type ChangeSet struct {
	OlderDate time.Time
	NewerDate time.Time
	Records   []ChangeRecord
}

// Empty reports whether the diff produced no changes of any type.
func (cs ChangeSet) Empty() bool {
	return len(cs.Records) == 0
}

// CountByType tallies the set per change type. Absent types count zero.
func (cs ChangeSet) CountByType() map[ChangeType]int {
	counts := map[ChangeType]int{
		ChangeTypeNew:      0,
		ChangeTypeModified: 0,
		ChangeTypeDeleted:  0,
	}
	for _, record := range cs.Records {
		counts[record.Type]++
	}
	return counts
}
