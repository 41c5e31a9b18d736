package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bobmcallan/fundhub/internal/models"
)

// Response is the standard envelope for all API responses.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, Response{Status: "success", Message: message, Data: data})
}

// WriteError writes an error envelope with a plain message.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, Response{Status: "error", Error: message})
}

// WriteJobError maps a job error's taxonomy kind to an HTTP status and
// writes the structured error.
func WriteJobError(w http.ResponseWriter, jobErr *models.JobError) {
	WriteJSON(w, statusForErrorKind(jobErr.Kind), Response{Status: "error", Error: jobErr})
}

// WriteServiceError writes either the structured job error or a 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	var jobErr *models.JobError
	if errors.As(err, &jobErr) {
		WriteJobError(w, jobErr)
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}

func statusForErrorKind(kind string) int {
	switch kind {
	case models.ErrKindValidation:
		return http.StatusUnprocessableEntity
	case models.ErrKindNotFound:
		return http.StatusNotFound
	case models.ErrKindConflict:
		return http.StatusConflict
	case models.ErrKindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RequireMethod validates the HTTP method and returns true if it matches.
// If it doesn't match, it writes a 405 response and returns false.
func RequireMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	return false
}

// DecodeJSON reads and decodes JSON from the request body into v.
// Returns false and writes a 400 error if decoding fails.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		WriteError(w, http.StatusBadRequest, "Request body is required")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // 10MB limit
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

// PathParam extracts a path parameter from the URL path.
// For a pattern like /api/funds/{name}/statistics, calling
// PathParam(r, "/api/funds/", "/statistics") extracts the {name} part.
func PathParam(r *http.Request, prefix, suffix string) string {
	path := r.URL.Path
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if suffix != "" {
		idx := strings.Index(rest, suffix)
		if idx < 0 {
			return rest
		}
		return rest[:idx]
	}
	// No suffix: return up to the next /
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[:idx]
	}
	return rest
}
