package handlers

import (
	"encoding/json"
	"net/http"
)

// MessageResponse is the body of every contact endpoint response
type MessageResponse struct {
	Message string `json:"message"`
}

// respondJSON sends data as a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already sent; nothing useful left to tell the client
		_ = err
	}
}

// respondMessage sends a {message} JSON response
func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, MessageResponse{Message: message})
}
