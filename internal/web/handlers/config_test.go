package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/uniportal/internal/config"
	"github.com/kozaktomas/uniportal/internal/encoder"
	"github.com/kozaktomas/uniportal/internal/faceauth"
	"github.com/kozaktomas/uniportal/internal/facematch"
)

func TestConfigHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	cfg := &config.Config{
		Face:    config.FaceConfig{Dim: 128, Tolerance: 0.6},
		Session: config.SessionConfig{TTL: 15 * time.Minute},
	}

	tests := []struct {
		name    string
		service *faceauth.Service
		want    bool
	}{
		{"extractor configured", env.service, true},
		{"extractor unavailable", faceauth.NewService(encoder.Unavailable{}, env.encodings, env.users, env.sm,
			facematch.NewMatcher(4, 0.6, facematch.PolicyFirst), faceauth.Options{}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			NewConfigHandler(cfg, tt.service).Get(recorder, httptest.NewRequest("GET", "/api/v1/config", nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var resp ConfigResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.FaceLogin != tt.want {
				t.Errorf("face_login = %v, want %v", resp.FaceLogin, tt.want)
			}
			if resp.FaceDim != 128 || resp.SessionTTLMins != 15 {
				t.Errorf("unexpected config response: %+v", resp)
			}
		})
	}
}
