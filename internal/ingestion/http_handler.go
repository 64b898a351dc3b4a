package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/corpwatch/corpwatch/internal/domain"
)

// Handler exposes snapshot ingestion as an HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a POST endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	captureDate := domain.DateOnly(time.Now())
	if raw := strings.TrimSpace(r.FormValue("captureDate")); raw != "" {
		captureDate, err = time.Parse(domain.DateLayout, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid capture date: %v", err), http.StatusBadRequest)
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	summary, err := h.service.Ingest(r.Context(), Request{
		CaptureDate: captureDate,
		FileName:    header.Filename,
		Data:        bytes.NewReader(data),
	})
	if err != nil {
		http.Error(w, err.Error(), ingestErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func ingestErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNonMonotonicSnapshot),
		errors.Is(err, domain.ErrOutOfOrderSnapshots):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrDuplicateIdentifier),
		errors.Is(err, domain.ErrMissingIdentifier),
		errors.Is(err, ErrUnsupportedFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
