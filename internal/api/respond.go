// Package api provides the shared JSON response envelope.
// Every endpoint responds with {"success", "message", "data"} so clients can
// handle all responses uniformly.
package api

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response body shape for all endpoints
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

// Success writes a 200 envelope
func Success(w http.ResponseWriter, message string, data interface{}) {
	write(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// SuccessStatus writes a success envelope with an explicit status code
func SuccessStatus(w http.ResponseWriter, status int, message string, data interface{}) {
	write(w, status, Envelope{Success: true, Message: message, Data: data})
}

// SuccessWarning writes a 200 envelope carrying a degraded-mode warning
func SuccessWarning(w http.ResponseWriter, message, warning string, data interface{}) {
	write(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data, Warning: warning})
}

// Error writes a failure envelope with the given status code
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope{Success: false, Message: message})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
