package query

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corpwatch/corpwatch/internal/domain"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	facade := testFacade(t, &fakeChangeLog{records: []domain.ChangeRecord{
		{CIN: "U12345DL2001PTC000001", CompanyName: "Acme Industries Ltd", Type: domain.ChangeTypeModified, ChangeDate: day1},
	}})

	mux := http.NewServeMux()
	NewHTTPHandler(facade).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s returned %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	server := testServer(t)

	var payload struct {
		Count   int                 `json:"count"`
		Results []map[string]string `json:"results"`
	}
	getJSON(t, server.URL+"/api/search?q=acme", http.StatusOK, &payload)

	if payload.Count != 1 {
		t.Fatalf("expected 1 result, got %d", payload.Count)
	}
	if payload.Results[0][domain.FieldCIN] != "U12345DL2001PTC000001" {
		t.Errorf("unexpected result: %v", payload.Results[0])
	}
}

func TestSearchEndpointEmptyQuery(t *testing.T) {
	server := testServer(t)
	getJSON(t, server.URL+"/api/search", http.StatusBadRequest, nil)
}

func TestCompanyEndpoint(t *testing.T) {
	server := testServer(t)

	var payload map[string]string
	getJSON(t, server.URL+"/api/companies/U12345DL2001PTC000001", http.StatusOK, &payload)
	if payload[domain.FieldCompanyName] != "Acme Industries Ltd" {
		t.Errorf("unexpected payload: %v", payload)
	}

	getJSON(t, server.URL+"/api/companies/U00000XX0000XXX000000", http.StatusNotFound, nil)
}

func TestCompanyChangesEndpoint(t *testing.T) {
	server := testServer(t)

	var payload struct {
		Count   int                   `json:"count"`
		Changes []domain.ChangeRecord `json:"changes"`
	}
	getJSON(t, server.URL+"/api/companies/U12345DL2001PTC000001/changes", http.StatusOK, &payload)
	if payload.Count != 1 || payload.Changes[0].Type != domain.ChangeTypeModified {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestChangesEndpointInvalidDate(t *testing.T) {
	server := testServer(t)
	getJSON(t, server.URL+"/api/changes?start=yesterday", http.StatusBadRequest, nil)
}

func TestChangesEndpointInvalidType(t *testing.T) {
	server := testServer(t)
	getJSON(t, server.URL+"/api/changes?type=RENAMED", http.StatusBadRequest, nil)
}

func TestSnapshotsEndpoint(t *testing.T) {
	facade := testFacadeWindow(t, &fakeChangeLog{}, &fakeMetaRepo{metas: []domain.SnapshotMeta{
		{
			ID:           1,
			SnapshotDate: day1,
			FilePath:     "data/snapshots/snapshot_2026-08-01.csv",
			TotalRecords: 2,
			Status:       domain.SnapshotStatusSuccess,
		},
	}}, 0)

	mux := http.NewServeMux()
	NewHTTPHandler(facade).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	var payload struct {
		Count     int                      `json:"count"`
		Snapshots []map[string]interface{} `json:"snapshots"`
	}
	getJSON(t, server.URL+"/api/snapshots", http.StatusOK, &payload)

	if payload.Count != 1 {
		t.Fatalf("expected 1 snapshot, got %d", payload.Count)
	}
	snapshot := payload.Snapshots[0]
	if snapshot["snapshotDate"] != "2026-08-01" || snapshot["status"] != "SUCCESS" {
		t.Errorf("unexpected snapshot payload: %v", snapshot)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := testServer(t)

	var stats Statistics
	getJSON(t, server.URL+"/api/stats?days=7", http.StatusOK, &stats)
	if stats.WindowDays != 7 {
		t.Errorf("expected 7-day window, got %d", stats.WindowDays)
	}
	if stats.TotalCompanies != 2 {
		t.Errorf("expected 2 companies, got %d", stats.TotalCompanies)
	}
}
