package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("record already exists")
)

// EncodingReader provides read-only access to stored face encodings.
// Every list method returns encodings ordered by (created_at, id) ascending,
// which is the iteration order identification relies on.
type EncodingReader interface {
	// Get retrieves an encoding by ID, returns ErrNotFound if missing
	Get(ctx context.Context, id uuid.UUID) (*StoredEncoding, error)
	// ListAll returns every stored encoding across all users
	ListAll(ctx context.Context) ([]StoredEncoding, error)
	// ListNear returns encodings whose vector mirror lies within maxDistance
	// (euclidean) of probe. Rows without a mirror are always included.
	ListNear(ctx context.Context, probe []float64, maxDistance float64) ([]StoredEncoding, error)
	// ListByUser returns the encodings registered for one user
	ListByUser(ctx context.Context, userID uuid.UUID) ([]StoredEncoding, error)
	// Count returns the total number of stored encodings
	Count(ctx context.Context) (int, error)
}

// EncodingWriter provides write access to stored face encodings
type EncodingWriter interface {
	EncodingReader

	// Create stores a new encoding. vector is the decoded form of enc.Encoding
	// and is used for the search mirror only.
	Create(ctx context.Context, enc *StoredEncoding, vector []float64) error
	// Delete removes an encoding, returns ErrNotFound if missing
	Delete(ctx context.Context, id uuid.UUID) error
}

// EncodingMirror is implemented by stores that keep a vector copy of each
// encoding for ListNear. The copy must be rewritten with SetMirror whenever
// the text encoding changes, otherwise ListNear can drop a matching row.
type EncodingMirror interface {
	// ListMirrors returns the vector copy of every encoding that has one
	ListMirrors(ctx context.Context) (map[uuid.UUID][]float64, error)
	// SetMirror replaces the vector copy of an encoding, returns ErrNotFound if missing
	SetMirror(ctx context.Context, id uuid.UUID, vector []float64) error
}

// UserReader provides read-only access to user accounts
type UserReader interface {
	// GetUser retrieves a user by ID, returns ErrNotFound if missing
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	// GetUserByEmail retrieves a user by normalized email, returns ErrNotFound if missing
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// UserWriter provides write access to user accounts
type UserWriter interface {
	UserReader

	// CreateUser stores a new user, returns ErrDuplicate if the email is taken
	CreateUser(ctx context.Context, user *User) error
	// SetDisabled enables or disables an account
	SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error
}
