package export

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
)

// Handler exposes change exports as an HTTP download.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a GET endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	end := domain.DateOnly(time.Now())
	start := end.AddDate(0, 0, -7)
	var err error

	if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
		if start, err = time.Parse(domain.DateLayout, raw); err != nil {
			http.Error(w, fmt.Sprintf("invalid start date: %v", err), http.StatusBadRequest)
			return
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
		if end, err = time.Parse(domain.DateLayout, raw); err != nil {
			http.Error(w, fmt.Sprintf("invalid end date: %v", err), http.StatusBadRequest)
			return
		}
	}

	var typeFilter *domain.ChangeType
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		changeType, parseErr := domain.ParseChangeType(raw)
		if parseErr != nil {
			http.Error(w, parseErr.Error(), http.StatusBadRequest)
			return
		}
		typeFilter = &changeType
	}

	fileName := fmt.Sprintf("changes_%s_%s.xlsx",
		start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := h.service.WriteChangesXLSX(r.Context(), w, start, end, typeFilter); err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
