package handlers

import (
	"net/http"
	"time"
)

// Version is overridden at build time with -ldflags "-X ...handlers.Version=..."
var Version = "dev"

// VersionResponse is the body of GET /version
type VersionResponse struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// VersionInfo exposes the build version only
func VersionInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, VersionResponse{
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
