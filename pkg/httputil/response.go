package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json and encodes the value
// as JSON. Any encoding errors are silently ignored (best-effort).
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardized JSON error response. kind is the stable
// machine-readable error identifier (e.g. "not_found", "missing_fields");
// message is the human explanation. The response format is:
// {"error": kind, "message": message, "code": kind}
func WriteError(w http.ResponseWriter, code int, kind, message string) {
	WriteJSON(w, code, map[string]any{
		"error":   kind,
		"message": message,
		"code":    kind,
	})
}
