package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/kozaktomas/uniportal/internal/web/middleware"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles password authentication endpoints
type AuthHandler struct {
	users          database.UserReader
	sessionManager *middleware.SessionManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users database.UserReader, sm *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{
		users:          users,
		sessionManager: sm,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Login handles email and password login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, 1<<16, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		log.Printf("error: password login lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || user.HashedPassword == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		log.Printf("Password login failed for %s", sanitizeForLog(req.Email))
		respondJSON(w, http.StatusUnauthorized, LoginResponse{Error: "invalid credentials"})
		return
	}
	if user.Disabled {
		respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	session, err := h.sessionManager.CreateSession(r.Context(), user.ID, user.Email)
	if err != nil {
		log.Printf("error: failed to create session: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.sessionManager.SetSessionCookie(w, r, session.ID)

	respondJSON(w, http.StatusOK, LoginResponse{
		Success:     true,
		AccessToken: session.ID,
		TokenType:   "bearer",
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles user logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessionManager.GetSessionFromRequest(r); session != nil {
		h.sessionManager.DeleteSession(r.Context(), session.ID)
	}

	h.sessionManager.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status checks if the user is authenticated by validating the session.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessionManager.GetSessionFromRequest(r)
	if session == nil {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: true,
		UserID:        session.UserID.String(),
		ExpiresAt:     session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
