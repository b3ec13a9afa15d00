package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/kozaktomas/uniportal/internal/faceauth"
	"github.com/kozaktomas/uniportal/internal/web/middleware"
)

// FacesHandler handles face enrollment, face login and encoding management
type FacesHandler struct {
	service        *faceauth.Service
	sessionManager *middleware.SessionManager
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(service *faceauth.Service, sm *middleware.SessionManager) *FacesHandler {
	return &FacesHandler{
		service:        service,
		sessionManager: sm,
	}
}

type faceLoginRequest struct {
	ImageData string `json:"image_data"`
}

// FaceLoginResponse is returned by a successful face login
type FaceLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	UserEmail   string `json:"user_email"`
	ExpiresAt   string `json:"expires_at"`
}

type faceRegisterRequest struct {
	ImageData string `json:"image_data"`
	UserID    string `json:"user_id,omitempty"`
}

// FaceRegisterResponse acknowledges a stored face encoding
type FaceRegisterResponse struct {
	Msg    string `json:"msg"`
	FaceID string `json:"face_id"`
}

// FaceEncodingResponse describes a stored encoding without its vector
type FaceEncodingResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

// Login authenticates a user by face and issues a session
func (h *FacesHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req faceLoginRequest
	if err := decodeJSON(w, r, maxImageBodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ImageData == "" {
		respondError(w, http.StatusBadRequest, "image_data is required")
		return
	}

	result, err := h.service.Login(r.Context(), req.ImageData)
	if err != nil {
		respondFaceError(w, err)
		return
	}

	h.sessionManager.SetSessionCookie(w, r, result.AccessToken)

	respondJSON(w, http.StatusOK, FaceLoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		UserID:      result.User.ID.String(),
		UserEmail:   result.User.Email,
		ExpiresAt:   result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Register enrolls a face for the current user, or for user_id when an administrator asks
func (h *FacesHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUserFromContext(r.Context())
	if actor == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req faceRegisterRequest
	if err := decodeJSON(w, r, maxImageBodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ImageData == "" {
		respondError(w, http.StatusBadRequest, "image_data is required")
		return
	}

	target, ok := parseOptionalUUID(req.UserID)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	enc, err := h.service.Enroll(r.Context(), actor, target, req.ImageData)
	if err != nil {
		respondFaceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, FaceRegisterResponse{
		Msg:    "Face registered successfully",
		FaceID: enc.ID.String(),
	})
}

// List returns the face encodings of the current user, or of ?user_id= for administrators
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUserFromContext(r.Context())
	if actor == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	target, ok := parseOptionalUUID(r.URL.Query().Get("user_id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	encs, err := h.service.ListEncodings(r.Context(), actor, target)
	if err != nil {
		respondFaceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toEncodingResponses(encs))
}

// Delete removes a face encoding
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetUserFromContext(r.Context())
	if actor == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid face id")
		return
	}

	if err := h.service.DeleteEncoding(r.Context(), actor, id); err != nil {
		respondFaceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func toEncodingResponses(encs []database.StoredEncoding) []FaceEncodingResponse {
	out := make([]FaceEncodingResponse, 0, len(encs))
	for _, enc := range encs {
		out = append(out, FaceEncodingResponse{
			ID:        enc.ID.String(),
			UserID:    enc.UserID.String(),
			CreatedAt: enc.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// parseOptionalUUID parses s, treating an empty string as uuid.Nil.
func parseOptionalUUID(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
