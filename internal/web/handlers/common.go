package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/uniportal/internal/faceauth"
	"github.com/kozaktomas/uniportal/internal/facematch"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxImageBodyBytes bounds request bodies carrying a base64 image.
const maxImageBodyBytes = 16 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON request body into target.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, target any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(target)
}

// respondFaceError maps face authentication errors to HTTP responses.
func respondFaceError(w http.ResponseWriter, err error) {
	var opErr *faceauth.OperationError
	switch {
	case errors.Is(err, faceauth.ErrImageDecode):
		respondError(w, http.StatusBadRequest, "invalid image data")
	case errors.Is(err, faceauth.ErrNoFaceDetected):
		respondError(w, http.StatusBadRequest, "no face detected in image")
	case errors.Is(err, faceauth.ErrFaceNotRecognized):
		respondError(w, http.StatusUnauthorized, "face not recognized")
	case errors.Is(err, faceauth.ErrAccountDisabled):
		respondError(w, http.StatusForbidden, "account is disabled")
	case errors.Is(err, faceauth.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, faceauth.ErrEncodingNotFound):
		respondError(w, http.StatusNotFound, "face encoding not found")
	case errors.Is(err, faceauth.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, faceauth.ErrExtractorUnavailable):
		respondError(w, http.StatusServiceUnavailable, "face recognition is not available")
	case errors.Is(err, facematch.ErrDimensionMismatch):
		log.Printf("error: inconsistent face data: %v", err)
		respondError(w, http.StatusInternalServerError, "face data is inconsistent")
	case errors.As(err, &opErr):
		log.Printf("warning: %v", err)
		respondError(w, http.StatusBadRequest, "face operation failed")
	default:
		log.Printf("error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
