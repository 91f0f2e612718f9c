package prefixcode

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON encodes data as JSON and writes it to the response.
// Logs any encoding errors instead of silently ignoring them.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

// writeJSONStatus writes a JSON response with a specific status code.
func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "err", err)
	}
}

// writeError writes an error response with appropriate status code and logging.
func writeError(w http.ResponseWriter, message string, status int) {
	slog.Warn("HTTP error", "status", status, "message", message)
	http.Error(w, message, status)
}
