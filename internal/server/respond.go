package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pavel-fokin/file-converter/internal/convert"
)

type errorResponse struct {
	Error string       `json:"error"`
	Kind  convert.Kind `json:"kind"`
}

// respondJSON marshals before writing headers so an encoding failure can
// still become a 500.
func respondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// respondError maps err to a status and writes the error body. Backend and
// internal causes are logged and replaced with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := convert.KindOf(err)
	status := statusFor(kind)
	message := err.Error()

	switch kind {
	case convert.KindBackend:
		logger.Error("Conversion failed", "error", err, "request_id", requestIDFrom(r.Context()))
		message = "conversion failed"
	case convert.KindInternal:
		logger.Error("Request failed", "error", err, "path", r.URL.Path, "request_id", requestIDFrom(r.Context()))
		message = "internal server error"
	}

	respondJSON(w, status, errorResponse{Error: message, Kind: kind})
}

func statusFor(kind convert.Kind) int {
	switch kind {
	case convert.KindValidation, convert.KindUnsupported:
		return http.StatusBadRequest
	case convert.KindNotFound:
		return http.StatusNotFound
	case convert.KindTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
