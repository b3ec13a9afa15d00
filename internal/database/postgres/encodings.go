package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/pgvector/pgvector-go"
)

// EncodingRepository provides PostgreSQL-backed face encoding storage.
// List queries order rows by (created_at, id) so identification scans are stable.
type EncodingRepository struct {
	pool *Pool
}

// NewEncodingRepository creates a new PostgreSQL encoding repository.
func NewEncodingRepository(pool *Pool) *EncodingRepository {
	return &EncodingRepository{pool: pool}
}

const encodingColumns = `id, user_id, encoding, created_at`

// toFloat32 converts a descriptor to the float32 form pgvector stores.
func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Create stores a new encoding together with its pgvector mirror.
func (r *EncodingRepository) Create(ctx context.Context, enc *database.StoredEncoding, vector []float64) error {
	if enc.ID == uuid.Nil {
		enc.ID = uuid.New()
	}

	var mirror any
	if len(vector) > 0 {
		mirror = pgvector.NewVector(toFloat32(vector))
	}

	query := `
		INSERT INTO face_encodings (id, user_id, encoding, embedding, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query, enc.ID, enc.UserID, enc.Encoding, mirror).Scan(&enc.CreatedAt); err != nil {
		return fmt.Errorf("insert face encoding: %w", err)
	}
	return nil
}

// Get retrieves an encoding by ID.
func (r *EncodingRepository) Get(ctx context.Context, id uuid.UUID) (*database.StoredEncoding, error) {
	var enc database.StoredEncoding
	err := r.pool.QueryRow(ctx, "SELECT "+encodingColumns+" FROM face_encodings WHERE id = $1", id).Scan(
		&enc.ID, &enc.UserID, &enc.Encoding, &enc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face encoding: %w", err)
	}
	return &enc, nil
}

// ListAll returns every stored encoding.
func (r *EncodingRepository) ListAll(ctx context.Context) ([]database.StoredEncoding, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+encodingColumns+" FROM face_encodings ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("query face encodings: %w", err)
	}
	defer rows.Close()

	return scanEncodings(rows)
}

// ListNear returns encodings whose mirror is within maxDistance of probe.
// The mirror is float32, so callers should pass a small slack on top of their
// tolerance and re-check the authoritative text encoding.
func (r *EncodingRepository) ListNear(
	ctx context.Context, probe []float64, maxDistance float64,
) ([]database.StoredEncoding, error) {
	query := `
		SELECT ` + encodingColumns + `
		FROM face_encodings
		WHERE CASE
			WHEN embedding IS NULL OR vector_dims(embedding) <> $3 THEN TRUE
			ELSE embedding <-> $1::vector < $2
		END
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(toFloat32(probe)), maxDistance, len(probe))
	if err != nil {
		return nil, fmt.Errorf("query near face encodings: %w", err)
	}
	defer rows.Close()

	return scanEncodings(rows)
}

// ListMirrors returns the pgvector copy of every encoding that has one.
func (r *EncodingRepository) ListMirrors(ctx context.Context) (map[uuid.UUID][]float64, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, embedding FROM face_encodings WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("query face encoding mirrors: %w", err)
	}
	defer rows.Close()

	mirrors := make(map[uuid.UUID][]float64)
	for rows.Next() {
		var id uuid.UUID
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("scan face encoding mirror: %w", err)
		}
		values := vec.Slice()
		mirror := make([]float64, len(values))
		for i, x := range values {
			mirror[i] = float64(x)
		}
		mirrors[id] = mirror
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face encoding mirrors: %w", err)
	}
	return mirrors, nil
}

// SetMirror rewrites the pgvector copy of an encoding.
func (r *EncodingRepository) SetMirror(ctx context.Context, id uuid.UUID, vector []float64) error {
	result, err := r.pool.Exec(
		ctx, "UPDATE face_encodings SET embedding = $2 WHERE id = $1", id, pgvector.NewVector(toFloat32(vector)),
	)
	if err != nil {
		return fmt.Errorf("update face encoding mirror: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// ListByUser returns the encodings registered for a user.
func (r *EncodingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]database.StoredEncoding, error) {
	rows, err := r.pool.Query(
		ctx, "SELECT "+encodingColumns+" FROM face_encodings WHERE user_id = $1 ORDER BY created_at, id", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query user face encodings: %w", err)
	}
	defer rows.Close()

	return scanEncodings(rows)
}

// Count returns the total number of stored encodings.
func (r *EncodingRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_encodings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count face encodings: %w", err)
	}
	return count, nil
}

// Delete removes an encoding.
func (r *EncodingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, "DELETE FROM face_encodings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete face encoding: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

func scanEncodings(rows *sql.Rows) ([]database.StoredEncoding, error) {
	var encodings []database.StoredEncoding
	for rows.Next() {
		var enc database.StoredEncoding
		if err := rows.Scan(&enc.ID, &enc.UserID, &enc.Encoding, &enc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face encoding: %w", err)
		}
		encodings = append(encodings, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face encodings: %w", err)
	}
	return encodings, nil
}
