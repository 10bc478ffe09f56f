package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Handler exposes asset export and the import template as downloads.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with download endpoints.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/template"):
		h.handleTemplate(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/fields"):
		h.handleFields(w, r)
	case r.Method == http.MethodGet:
		h.handleExport(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var fields []string
	for _, raw := range r.URL.Query()["fields"] {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				fields = append(fields, key)
			}
		}
	}

	result, err := h.service.ExportAssets(r.Context(), Request{Fields: fields, Format: format})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrEmptySelection) || errors.Is(err, ErrUnknownField) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	serveFile(w, result)
}

func (h *Handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Template(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	serveFile(w, result)
}

// handleFields returns the export catalog so clients can build field
// pickers without hard-coding the list.
func (h *Handler) handleFields(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(Catalog())
}

func serveFile(w http.ResponseWriter, result Result) {
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	if result.Truncated {
		w.Header().Set("X-Export-Truncated", "true")
		w.Header().Set("X-Export-Total", strconv.Itoa(result.TotalAvailable))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
