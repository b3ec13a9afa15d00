package handlers

import (
	"net/http"

	"github.com/kozaktomas/uniportal/internal/config"
	"github.com/kozaktomas/uniportal/internal/faceauth"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	faces  *faceauth.Service
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, faces *faceauth.Service) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		faces:  faces,
	}
}

// ConfigResponse tells clients which login methods are usable
type ConfigResponse struct {
	FaceLogin      bool    `json:"face_login"`
	FaceDim        int     `json:"face_dim"`
	FaceTolerance  float64 `json:"face_tolerance"`
	SessionTTLMins int     `json:"session_ttl_minutes"`
}

// Get returns the public configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		FaceLogin:      h.faces.Available(),
		FaceDim:        h.config.Face.Dim,
		FaceTolerance:  h.config.Face.Tolerance,
		SessionTTLMins: int(h.config.Session.TTL.Minutes()),
	})
}
