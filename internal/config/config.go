package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database  DatabaseConfig
	Embedding EmbeddingConfig
	Face      FaceConfig
	Session   SessionConfig
	Web       WebConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type EmbeddingConfig struct {
	URL          string // face embedding server; empty disables face authentication
	MaxImageSize int    // uploads larger than this (px, either side) are downscaled
}

type FaceConfig struct {
	Dim        int     // descriptor length produced by the embedding server
	Tolerance  float64 // strict upper bound on euclidean distance for a match
	Policy     string  // "first" or "best"
	SearchMode string  // "scan" reads every encoding, "index" prefilters with pgvector
	IndexSlack float64 // added to the tolerance for the float32 pgvector prefilter
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins; localhost is always allowed
}

// defaults mirrors the layout of defaults.yaml.
type defaults struct {
	Face struct {
		Dim        int     `yaml:"dim"`
		Tolerance  float64 `yaml:"tolerance"`
		Policy     string  `yaml:"policy"`
		SearchMode string  `yaml:"search_mode"`
		IndexSlack float64 `yaml:"index_slack"`
	} `yaml:"face"`
	Embedding struct {
		URL          string `yaml:"url"`
		MaxImageSize int    `yaml:"max_image_size"`
	} `yaml:"embedding"`
	Database struct {
		MaxOpenConns int `yaml:"max_open_conns"`
		MaxIdleConns int `yaml:"max_idle_conns"`
	} `yaml:"database"`
	Session struct {
		TTLMinutes int `yaml:"ttl_minutes"`
	} `yaml:"session"`
	Web struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"web"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Embedding: EmbeddingConfig{
			URL:          envString("EMBEDDING_URL", d.Embedding.URL),
			MaxImageSize: envInt("EMBEDDING_MAX_IMAGE_SIZE", d.Embedding.MaxImageSize),
		},
		Face: FaceConfig{
			Dim:        envInt("FACE_DIM", d.Face.Dim),
			Tolerance:  envFloat("FACE_TOLERANCE", d.Face.Tolerance),
			Policy:     envString("FACE_MATCH_POLICY", d.Face.Policy),
			SearchMode: envString("FACE_SEARCH_MODE", d.Face.SearchMode),
			IndexSlack: envFloat("FACE_INDEX_SLACK", d.Face.IndexSlack),
		},
		Session: SessionConfig{
			Secret: os.Getenv("WEB_SESSION_SECRET"),
			TTL:    time.Duration(envInt("ACCESS_TOKEN_EXPIRE_MINUTES", d.Session.TTLMinutes)) * time.Minute,
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// IndexedSearch reports whether login should prefilter candidates in the database.
func (c *FaceConfig) IndexedSearch() bool {
	return c.SearchMode == "index"
}
