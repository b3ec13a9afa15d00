package database

import (
	"context"
	"fmt"
)

var (
	postgresEncodingWriter func() EncodingWriter
	postgresUserWriter     func() UserWriter
	postgresInitialized    bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the serve command to avoid import cycles.
func RegisterPostgresBackend(
	encodingWriter func() EncodingWriter,
	userWriter func() UserWriter,
) {
	postgresEncodingWriter = encodingWriter
	postgresUserWriter = userWriter
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetEncodingReader returns an EncodingReader from the PostgreSQL backend
func GetEncodingReader(ctx context.Context) (EncodingReader, error) {
	return GetEncodingWriter(ctx)
}

// GetEncodingWriter returns an EncodingWriter from the PostgreSQL backend
func GetEncodingWriter(ctx context.Context) (EncodingWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresEncodingWriter == nil {
		return nil, fmt.Errorf("PostgreSQL encoding writer not registered")
	}
	return postgresEncodingWriter(), nil
}

// GetUserReader returns a UserReader from the PostgreSQL backend
func GetUserReader(ctx context.Context) (UserReader, error) {
	return GetUserWriter(ctx)
}

// GetUserWriter returns a UserWriter from the PostgreSQL backend
func GetUserWriter(ctx context.Context) (UserWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresUserWriter == nil {
		return nil, fmt.Errorf("PostgreSQL user writer not registered")
	}
	return postgresUserWriter(), nil
}
