package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"FACE_DIM", "FACE_TOLERANCE", "FACE_MATCH_POLICY", "FACE_SEARCH_MODE",
		"EMBEDDING_URL", "EMBEDDING_MAX_IMAGE_SIZE", "ACCESS_TOKEN_EXPIRE_MINUTES",
		"WEB_HOST", "WEB_PORT", "DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Face.Dim != 128 {
		t.Errorf("expected default face dim 128, got %d", cfg.Face.Dim)
	}
	if cfg.Face.Tolerance != 0.6 {
		t.Errorf("expected default tolerance 0.6, got %f", cfg.Face.Tolerance)
	}
	if cfg.Face.Policy != "first" {
		t.Errorf("expected default policy 'first', got '%s'", cfg.Face.Policy)
	}
	if cfg.Face.IndexedSearch() {
		t.Error("expected scan search mode by default")
	}
	if cfg.Embedding.URL != "" {
		t.Errorf("expected empty embedding URL, got '%s'", cfg.Embedding.URL)
	}
	if cfg.Embedding.MaxImageSize != 1600 {
		t.Errorf("expected max image size 1600, got %d", cfg.Embedding.MaxImageSize)
	}
	if cfg.Session.TTL != 15*time.Minute {
		t.Errorf("expected session TTL 15m, got %v", cfg.Session.TTL)
	}
	if cfg.Web.Port != 8080 || cfg.Web.Host != "0.0.0.0" {
		t.Errorf("expected 0.0.0.0:8080, got %s:%d", cfg.Web.Host, cfg.Web.Port)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected pool 25/5, got %d/%d", cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
}

func TestLoad_FaceOverrides(t *testing.T) {
	t.Setenv("FACE_DIM", "512")
	t.Setenv("FACE_TOLERANCE", "0.45")
	t.Setenv("FACE_MATCH_POLICY", "best")
	t.Setenv("FACE_SEARCH_MODE", "index")

	cfg := Load()

	if cfg.Face.Dim != 512 {
		t.Errorf("expected face dim 512, got %d", cfg.Face.Dim)
	}
	if cfg.Face.Tolerance != 0.45 {
		t.Errorf("expected tolerance 0.45, got %f", cfg.Face.Tolerance)
	}
	if cfg.Face.Policy != "best" {
		t.Errorf("expected policy 'best', got '%s'", cfg.Face.Policy)
	}
	if !cfg.Face.IndexedSearch() {
		t.Error("expected indexed search mode")
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric dim", "FACE_DIM", "invalid"},
		{"negative dim", "FACE_DIM", "-100"},
		{"zero dim", "FACE_DIM", "0"},
		{"non-numeric tolerance", "FACE_TOLERANCE", "close"},
		{"negative tolerance", "FACE_TOLERANCE", "-0.6"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)

			cfg := Load()

			if cfg.Face.Dim != 128 {
				t.Errorf("expected default dim 128, got %d", cfg.Face.Dim)
			}
			if cfg.Face.Tolerance != 0.6 {
				t.Errorf("expected default tolerance 0.6, got %f", cfg.Face.Tolerance)
			}
		})
	}
}

func TestLoad_SessionAndEmbedding(t *testing.T) {
	t.Setenv("WEB_SESSION_SECRET", "s3cret")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "60")
	t.Setenv("EMBEDDING_URL", "http://localhost:8000")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/uni")

	cfg := Load()

	if cfg.Session.Secret != "s3cret" {
		t.Errorf("expected secret 's3cret', got '%s'", cfg.Session.Secret)
	}
	if cfg.Session.TTL != time.Hour {
		t.Errorf("expected TTL 1h, got %v", cfg.Session.TTL)
	}
	if cfg.Embedding.URL != "http://localhost:8000" {
		t.Errorf("expected embedding URL 'http://localhost:8000', got '%s'", cfg.Embedding.URL)
	}
	if cfg.Database.URL != "postgres://u:p@localhost/uni" {
		t.Errorf("unexpected database URL '%s'", cfg.Database.URL)
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", " https://portal.uni.edu, ,https://admin.uni.edu ")

	cfg := Load()

	want := []string{"https://portal.uni.edu", "https://admin.uni.edu"}
	if len(cfg.Web.AllowedOrigins) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Web.AllowedOrigins)
	}
	for i := range want {
		if cfg.Web.AllowedOrigins[i] != want[i] {
			t.Errorf("origin %d: expected %s, got %s", i, want[i], cfg.Web.AllowedOrigins[i])
		}
	}
}
