package database

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Role is a user account role.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
)

// ParseRole validates a role name (case-insensitive).
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// User is a portal account. Face encodings reference users by ID.
type User struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	Role           Role
	Disabled       bool
	HashedPassword string
	CreatedAt      time.Time
}

// IsAdmin reports whether the user has the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// StoredEncoding is a face descriptor registered for a user.
// Encoding holds the canonical text form produced by facematch.Codec.
type StoredEncoding struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Encoding  string
	CreatedAt time.Time
}

// NormalizeEmail trims, NFC-normalizes and lowercases an email address so that
// lookups do not depend on how the client composed the characters.
func NormalizeEmail(email string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(email)))
}
