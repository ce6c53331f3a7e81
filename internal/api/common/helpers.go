package common

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/huannv-sys/mik-moni-demo/internal/middleware"
)

// SendJSON sends a JSON response
func SendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// SendError sends a standardized error response
func SendError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	middleware.WriteError(w, r, status, code, message, details)
}

// SendNotFound reports a missing device collection
func SendNotFound(w http.ResponseWriter, r *http.Request, message string) {
	SendError(w, r, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// ParseUUIDParam extracts and validates a UUID from URL params
func ParseUUIDParam(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, param)
	id, err := uuid.Parse(idStr)
	if err != nil {
		SendError(w, r, http.StatusBadRequest, "INVALID_ID", "Invalid UUID format", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// SendListResponse sends a list under key along with its length
func SendListResponse(w http.ResponseWriter, key string, data any, total int) {
	SendJSON(w, http.StatusOK, map[string]any{
		key:     data,
		"total": total,
	})
}
