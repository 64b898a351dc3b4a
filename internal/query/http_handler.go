package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
)

// Handler exposes the read facade over HTTP.
type Handler struct {
	facade *Facade
}

// NewHTTPHandler wraps the facade with read-only endpoints.
func NewHTTPHandler(facade *Facade) *Handler {
	return &Handler{facade: facade}
}

// Register mounts the read endpoints on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", h.search)
	mux.HandleFunc("GET /api/companies/{cin}", h.company)
	mux.HandleFunc("GET /api/companies/{cin}/changes", h.companyChanges)
	mux.HandleFunc("GET /api/changes", h.changes)
	mux.HandleFunc("GET /api/changes/recent", h.recentChanges)
	mux.HandleFunc("GET /api/snapshots", h.snapshots)
	mux.HandleFunc("GET /api/stats", h.stats)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	queryText := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := parseIntParam(r, "limit", 0)

	results, err := h.facade.Search(r.Context(), queryText, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   queryText,
		"count":   len(results),
		"results": companiesPayload(results),
	})
}

func (h *Handler) company(w http.ResponseWriter, r *http.Request) {
	record, err := h.facade.GetCompany(r.Context(), r.PathValue("cin"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, companyPayload(record))
}

func (h *Handler) companyChanges(w http.ResponseWriter, r *http.Request) {
	records, err := h.facade.GetCompanyChanges(r.Context(), r.PathValue("cin"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"changes": records,
	})
}

func (h *Handler) changes(w http.ResponseWriter, r *http.Request) {
	start, end, typeFilter, err := parseChangeWindow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.facade.GetChanges(r.Context(), start, end, typeFilter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"start":   start.Format(domain.DateLayout),
		"end":     end.Format(domain.DateLayout),
		"count":   len(records),
		"changes": records,
	})
}

func (h *Handler) recentChanges(w http.ResponseWriter, r *http.Request) {
	records, err := h.facade.GetRecentChanges(r.Context(), parseIntParam(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"changes": records,
	})
}

func (h *Handler) snapshots(w http.ResponseWriter, r *http.Request) {
	metas, err := h.facade.GetSnapshots(r.Context(), parseIntParam(r, "limit", 10))
	if err != nil {
		writeError(w, err)
		return
	}
	payload := make([]map[string]any, len(metas))
	for i, meta := range metas {
		payload[i] = snapshotPayload(meta)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(metas),
		"snapshots": payload,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.facade.GetStatistics(r.Context(), parseIntParam(r, "days", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// parseChangeWindow reads start/end/type query parameters. Missing dates
// default to the trailing seven days.
func parseChangeWindow(r *http.Request) (start, end time.Time, typeFilter *domain.ChangeType, err error) {
	end = domain.DateOnly(time.Now())
	start = end.AddDate(0, 0, -7)

	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		if start, err = time.Parse(domain.DateLayout, raw); err != nil {
			return start, end, nil, fmt.Errorf("invalid start date %q: %w", raw, domain.ErrInvalidArgument)
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
		if end, err = time.Parse(domain.DateLayout, raw); err != nil {
			return start, end, nil, fmt.Errorf("invalid end date %q: %w", raw, domain.ErrInvalidArgument)
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		changeType, parseErr := domain.ParseChangeType(raw)
		if parseErr != nil {
			return start, end, nil, parseErr
		}
		typeFilter = &changeType
	}

	return domain.DateOnly(start), domain.DateOnly(end), typeFilter, nil
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func companyPayload(record domain.Company) map[string]string {
	payload := record.Values()
	payload[domain.FieldCIN] = record.CIN
	return payload
}

func snapshotPayload(meta domain.SnapshotMeta) map[string]any {
	payload := map[string]any{
		"id":           meta.ID,
		"snapshotDate": meta.SnapshotDate.Format(domain.DateLayout),
		"filePath":     meta.FilePath,
		"totalRecords": meta.TotalRecords,
		"status":       meta.Status,
		"createdAt":    meta.CreatedAt.Format(time.RFC3339),
	}
	if meta.ErrorMessage != "" {
		payload["errorMessage"] = meta.ErrorMessage
	}
	if meta.CompletedAt != nil {
		payload["completedAt"] = meta.CompletedAt.Format(time.RFC3339)
	}
	return payload
}

func companiesPayload(records []domain.Company) []map[string]string {
	payload := make([]map[string]string, len(records))
	for i, record := range records {
		payload[i] = companyPayload(record)
	}
	return payload
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
