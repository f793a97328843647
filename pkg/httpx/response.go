package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error body returned by every endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a uniform JSON error body.
func WriteError(w http.ResponseWriter, code int, err, desc string) {
	WriteJSON(w, code, ErrorResponse{Error: err, ErrorDescription: desc})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// Required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
