package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// errorBody is the JSON shape of every failure response. Error is a stable
// machine-readable code, Message is for humans.
type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RequestID  string `json:"requestId,omitempty"`
	ArticleID  string `json:"articleId,omitempty"`
	SourceID   string `json:"sourceId,omitempty"`
	ScriptID   string `json:"scriptId,omitempty"`
	LogID      string `json:"logId,omitempty"`
	Violations any    `json:"violations,omitempty"`
}

// writeJSON encodes v as JSON and writes it to the response with the given
// HTTP status code. Content-Type is always set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// At this point headers are already sent; log but cannot change status.
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// writeError writes a JSON failure with a code derived from status and the
// request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, errorBody{
		Error:     errorCode(status),
		Message:   message,
		RequestID: requestID(r),
	})
}

// errorCode maps a status to the code used in failure bodies.
func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "invalid_payload"
	case http.StatusBadGateway:
		return "upstream_failure"
	default:
		return "internal_error"
	}
}

// requestID returns the id assigned by the RequestID middleware, or a
// fresh one when the handler runs without it.
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}

// pathID extracts a non-blank chi URL parameter.
func pathID(r *http.Request, param string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, param))
	return id, id != ""
}

// queryLimit reads ?limit=, falling back to def for missing or invalid
// values and capping at ceiling.
func queryLimit(r *http.Request, def, ceiling int) int {
	l := r.URL.Query().Get("limit")
	if l == "" {
		return def
	}
	parsed, err := strconv.Atoi(l)
	if err != nil || parsed <= 0 {
		return def
	}
	return min(parsed, ceiling)
}
