package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/uniportal/internal/database"
)

// UserRepository provides PostgreSQL-backed user accounts.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, full_name, role, disabled, hashed_password, created_at`

func scanUser(row *sql.Row) (*database.User, error) {
	var u database.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &role, &u.Disabled, &u.HashedPassword, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = database.Role(role)
	return &u, nil
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*database.User, error) {
	return scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
}

// GetUserByEmail retrieves a user by email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	return scanUser(r.pool.QueryRow(
		ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", database.NormalizeEmail(email),
	))
}

// CreateUser stores a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user *database.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = database.RoleStudent
	}
	user.Email = database.NormalizeEmail(user.Email)

	query := `
		INSERT INTO users (id, email, full_name, role, disabled, hashed_password, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.FullName, string(user.Role), user.Disabled, user.HashedPassword,
	).Scan(&user.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("create user %s: %w", user.Email, database.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// SetDisabled enables or disables an account.
func (r *UserRepository) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	result, err := r.pool.Exec(ctx, "UPDATE users SET disabled = $2 WHERE id = $1", id, disabled)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
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
