package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// RequireSecret checks a shared-secret header. An empty expected value
// disables the check. Returns true when the request may proceed.
func RequireSecret(w http.ResponseWriter, r *http.Request, header, expected string) bool {
	if expected == "" {
		return true
	}
	provided := r.Header.Get(header)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}
