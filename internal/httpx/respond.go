package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/swiftlink/swiftlink/internal/errx"
)

// ErrorResponse is the JSON shape of every error the service returns. Error
// is a stable machine-readable code; Message is for humans. Internal causes
// are never serialized here, only logged.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already on the wire; nothing to do but log.
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

// WriteKindError maps an errx kind to its status and stable code and writes
// the response. Handlers that need custom messages per kind use WriteError
// directly.
func WriteKindError(w http.ResponseWriter, kind errx.Kind, message string) {
	WriteError(w, ErrorKindToStatus(kind), ErrorKindToCode(kind), message, nil)
}
