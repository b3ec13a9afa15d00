package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/uniportal/internal/faceauth"
	"github.com/kozaktomas/uniportal/internal/facematch"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})

	contentType := recorder.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", contentType)
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusNoContent, nil)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()
	errorMessage := "something went wrong"

	respondError(recorder, http.StatusBadRequest, errorMessage)

	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["error"] != errorMessage {
		t.Errorf("expected error '%s', got '%s'", errorMessage, result["error"])
	}
}

func TestRespondFaceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
	}{
		{"image decode", fmt.Errorf("%w: bad base64", faceauth.ErrImageDecode), http.StatusBadRequest},
		{"no face", faceauth.ErrNoFaceDetected, http.StatusBadRequest},
		{"not recognized", faceauth.ErrFaceNotRecognized, http.StatusUnauthorized},
		{"disabled", faceauth.ErrAccountDisabled, http.StatusForbidden},
		{"forbidden", faceauth.ErrForbidden, http.StatusForbidden},
		{"encoding not found", faceauth.ErrEncodingNotFound, http.StatusNotFound},
		{"user not found", faceauth.ErrUserNotFound, http.StatusNotFound},
		{"extractor unavailable", faceauth.ErrExtractorUnavailable, http.StatusServiceUnavailable},
		{"dimension mismatch", facematch.ErrDimensionMismatch, http.StatusInternalServerError},
		{"operation failed", &faceauth.OperationError{Op: "login", Err: errors.New("db down")}, http.StatusBadRequest},
		{"unknown", errors.New("surprise"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondFaceError(recorder, tc.err)

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\r\nb\nc"); got != "abc" {
		t.Errorf("sanitizeForLog() = %q, want %q", got, "abc")
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest("GET", "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
