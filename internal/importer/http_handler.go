package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Handler exposes import preview and commit as HTTP endpoints.
type Handler struct {
	service  *Service
	defaults Options
}

// NewHTTPHandler wraps the service with preview/commit/logs endpoints.
func NewHTTPHandler(service *Service, defaults Options) http.Handler {
	return &Handler{service: service, defaults: defaults}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/preview"):
		h.handlePreview(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/logs"):
		h.handleLogs(w, r)
	case r.Method == http.MethodPost:
		h.handleCommit(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type previewResponse struct {
	TotalRows  int            `json:"totalRows"`
	NewRows    int            `json:"newRows"`
	UpdateRows int            `json:"updateRows"`
	ErrorRows  int            `json:"errorRows"`
	Rows       []ValidatedRow `json:"rows"`
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	_, rows, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	validated, err := h.service.Preview(r.Context(), rows)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := previewResponse{TotalRows: len(validated), Rows: validated}
	for _, vr := range validated {
		switch vr.Status {
		case RowStatusNew:
			response.NewRows++
		case RowStatusUpdate:
			response.UpdateRows++
		case RowStatusError:
			response.ErrorRows++
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	fileName, rows, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	options := h.defaults
	if raw := strings.TrimSpace(r.FormValue("monthFirst")); raw != "" {
		monthFirst, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid monthFirst value: %v", err), http.StatusBadRequest)
			return
		}
		options.MonthFirst = monthFirst
	}

	result, err := h.service.Commit(r.Context(), CommitRequest{
		FileName: fileName,
		Rows:     rows,
		Options:  options,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 100)
	offset := intQuery(r, "offset", 0)
	fileName := strings.TrimSpace(r.URL.Query().Get("file"))

	entries, err := h.service.Logs(r.Context(), fileName, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// readUpload pulls the multipart file out of the request and parses it
// into rows, translating parse failures to 400s.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []Row, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return "", nil, false
	}

	rows, err := ParseFile(header.Filename, payload)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, ErrUnsupportedFormat) && !errors.Is(err, ErrEmptyFile) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return "", nil, false
	}

	return header.Filename, rows, true
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
