package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/54b3r/farmtable-go/internal/domain"
	"github.com/54b3r/farmtable-go/internal/logging"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v. Malformed bodies are validation
// errors on the "body" field.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError maps err onto the API error taxonomy:
//
//	ValidationError         → 400 with the offending field
//	ErrNotFound             → 404
//	ErrProviderUnavailable  → 503
//	ErrProviderFailed       → 502
//	anything else           → 500, logged, with a generic message
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := domain.AsValidation(err); ok {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: ve.Field + ": " + ve.Message, Field: ve.Field})
		return
	}

	log := logging.FromContext(r.Context())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrProviderUnavailable):
		log.Warn("ai backend unavailable", slog.Any("error", err))
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "ai backend not configured"})
	case errors.Is(err, domain.ErrProviderFailed):
		log.Warn("ai backend failed", slog.Any("error", err))
		writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: "ai backend failed"})
	default:
		log.Error("request failed", slog.Any("error", err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// queryInt parses an optional integer query parameter within [1, upper].
// Missing values yield def; out-of-range values are clamped.
func queryInt(r *http.Request, name string, def, upper int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, fmt.Sprintf("must be an integer, got %q", raw))
	}
	return min(max(n, 1), upper), nil
}
