// Package response writes the JSON envelope used by every API endpoint:
// {"status":..., "message":..., "data":..., "errors":...}.
package response

import (
	"encoding/json"
	"net/http"
)

type Envelope struct {
	Status  int         `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    any `json:"data,omitempty"`
	Errors  any `json:"errors,omitempty"`
}

// Write sends body with status as JSON.
func Write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, Envelope{Status: status, Message: message})
}

// Fail sends an error message with structured details (e.g. the failing cart line).
func Fail(w http.ResponseWriter, status int, message string, details any) {
	Write(w, status, Envelope{Status: status, Message: message, Errors: details})
}

// ValidationError sends a 422 with field-level error map.
func ValidationError(w http.ResponseWriter, errs map[string]string) {
	Fail(w, http.StatusUnprocessableEntity, "Validation failed", errs)
}

func Unauthorized(w http.ResponseWriter) { Error(w, http.StatusUnauthorized, "Unauthorized") }
func Forbidden(w http.ResponseWriter)    { Error(w, http.StatusForbidden, "Forbidden") }
func NotFound(w http.ResponseWriter)     { Error(w, http.StatusNotFound, "Not found") }
