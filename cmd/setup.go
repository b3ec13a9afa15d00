package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/uniportal/internal/config"
	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/kozaktomas/uniportal/internal/database/postgres"
	"github.com/kozaktomas/uniportal/internal/encoder"
	"github.com/kozaktomas/uniportal/internal/faceauth"
	"github.com/kozaktomas/uniportal/internal/facematch"
)

const extractorProbeTimeout = 10 * time.Second

// initDatabase connects to PostgreSQL, applies migrations and registers the repositories.
func initDatabase(cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	pool, err := postgres.Open(context.Background(), &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	encodingRepo := postgres.NewEncodingRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	database.RegisterPostgresBackend(
		func() database.EncodingWriter { return encodingRepo },
		func() database.UserWriter { return userRepo },
	)
	return pool, nil
}

// newExtractor returns the embedding server client, or encoder.Unavailable
// when EMBEDDING_URL is unset or the server does not answer its health check.
// The check runs once; later outages surface as per-request failures.
func newExtractor(ctx context.Context, cfg *config.Config) encoder.Extractor {
	if cfg.Embedding.URL == "" {
		fmt.Println("EMBEDDING_URL not set: face authentication disabled")
		return encoder.Unavailable{}
	}

	client := encoder.NewClient(cfg.Embedding.URL, cfg.Face.Dim, cfg.Embedding.MaxImageSize)
	probeCtx, cancel := context.WithTimeout(ctx, extractorProbeTimeout)
	defer cancel()
	if err := client.Probe(probeCtx); err != nil {
		fmt.Printf("Warning: embedding server unavailable: %v\n", err)
		fmt.Println("Face authentication disabled")
		return encoder.Unavailable{}
	}

	fmt.Printf("Face authentication enabled (embedding server %s)\n", cfg.Embedding.URL)
	return client
}

// newMatcher builds the matcher from the face configuration.
func newMatcher(cfg *config.Config) (*facematch.Matcher, error) {
	policy, err := facematch.ParsePolicy(cfg.Face.Policy)
	if err != nil {
		return nil, err
	}
	return facematch.NewMatcher(cfg.Face.Dim, cfg.Face.Tolerance, policy), nil
}

// newFaceService wires the face authentication service over the registered repositories.
func newFaceService(ctx context.Context, cfg *config.Config, sessions faceauth.SessionIssuer) (*faceauth.Service, error) {
	encodings, err := database.GetEncodingWriter(ctx)
	if err != nil {
		return nil, err
	}
	users, err := database.GetUserReader(ctx)
	if err != nil {
		return nil, err
	}
	matcher, err := newMatcher(cfg)
	if err != nil {
		return nil, err
	}

	opts := faceauth.Options{
		Indexed:    cfg.Face.IndexedSearch(),
		IndexSlack: cfg.Face.IndexSlack,
	}
	return faceauth.NewService(newExtractor(ctx, cfg), encodings, users, sessions, matcher, opts), nil
}

// readImagePayload reads an image file and encodes it the way clients upload it.
func readImagePayload(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	return encoder.EncodePayload(data), nil
}
