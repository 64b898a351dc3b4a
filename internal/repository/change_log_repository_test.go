package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/corpwatch/corpwatch/internal/domain"
)

var (
	day1 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)
)

func TestBuildChangeQuery(t *testing.T) {
	sql, args, err := buildChangeQuery(goqu.Dialect("postgres"), day1, day2, nil).Prepared(true).ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}

	if !strings.Contains(sql, `"change_date" >= $1`) || !strings.Contains(sql, `"change_date" <= $2`) {
		t.Errorf("expected inclusive date bounds, got %q", sql)
	}
	if strings.Contains(sql, "change_type") {
		t.Errorf("unfiltered query should not mention change_type, got %q", sql)
	}
	if !strings.Contains(sql, `ORDER BY "change_date" ASC, "cin" ASC`) {
		t.Errorf("expected deterministic ordering, got %q", sql)
	}
	if len(args) != 2 {
		t.Errorf("expected 2 args, got %v", args)
	}
}

func TestBuildChangeQueryWithTypeFilter(t *testing.T) {
	filter := domain.ChangeTypeModified
	sql, args, err := buildChangeQuery(goqu.Dialect("postgres"), day1, day2, &filter).Prepared(true).ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}

	if !strings.Contains(sql, `"change_type" = $3`) {
		t.Errorf("expected change_type predicate, got %q", sql)
	}
	if len(args) != 3 || args[2] != "MODIFIED" {
		t.Errorf("expected MODIFIED arg, got %v", args)
	}
}

func TestMarshalChangePayloadNeverNull(t *testing.T) {
	// NEW records have no changed fields and no old values; the JSONB columns
	// still need valid JSON.
	changedFields, oldValues, newValues, err := marshalChangePayload(domain.ChangeRecord{
		CIN:       "U1",
		Type:      domain.ChangeTypeNew,
		NewValues: map[string]string{"company_name": "Acme Ltd"},
	})
	if err != nil {
		t.Fatalf("marshalChangePayload failed: %v", err)
	}

	if string(changedFields) != "[]" {
		t.Errorf("expected empty array literal, got %s", changedFields)
	}
	if string(oldValues) != "{}" {
		t.Errorf("expected empty object literal, got %s", oldValues)
	}
	if !strings.Contains(string(newValues), "Acme Ltd") {
		t.Errorf("expected marshalled new values, got %s", newValues)
	}
}

func TestChangePayloadRoundTrip(t *testing.T) {
	original := domain.ChangeRecord{
		CIN:           "U1",
		Type:          domain.ChangeTypeModified,
		ChangedFields: []string{"company_status", "paidup_capital"},
		OldValues:     map[string]string{"company_status": "Active", "paidup_capital": "100000"},
		NewValues:     map[string]string{"company_status": "Strike Off", "paidup_capital": "0"},
	}

	changedFields, oldValues, newValues, err := marshalChangePayload(original)
	if err != nil {
		t.Fatalf("marshalChangePayload failed: %v", err)
	}

	decoded := domain.ChangeRecord{CIN: original.CIN, Type: original.Type}
	if err := unmarshalChangePayload(changedFields, oldValues, newValues, &decoded); err != nil {
		t.Fatalf("unmarshalChangePayload failed: %v", err)
	}

	if len(decoded.ChangedFields) != 2 || decoded.ChangedFields[0] != "company_status" {
		t.Errorf("changed fields did not survive: %v", decoded.ChangedFields)
	}
	if decoded.OldValues["company_status"] != "Active" || decoded.NewValues["company_status"] != "Strike Off" {
		t.Errorf("value payloads did not survive: old=%v new=%v", decoded.OldValues, decoded.NewValues)
	}
}

func TestUnmarshalEmptyLiteralsStayNil(t *testing.T) {
	var record domain.ChangeRecord
	if err := unmarshalChangePayload([]byte("[]"), []byte("{}"), []byte("{}"), &record); err != nil {
		t.Fatalf("unmarshalChangePayload failed: %v", err)
	}
	if record.ChangedFields != nil || record.OldValues != nil || record.NewValues != nil {
		t.Errorf("empty literals should decode to nil, got %+v", record)
	}
}
