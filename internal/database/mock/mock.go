// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/uniportal/internal/database"
)

type storedRow struct {
	enc    database.StoredEncoding
	vector []float64
}

// MockEncodingStore is an in-memory implementation of database.EncodingWriter
type MockEncodingStore struct {
	mu   sync.RWMutex
	rows []storedRow
	now  time.Time

	// Error injection
	GetError        error
	ListAllError    error
	ListNearError   error
	ListByUserError error
	CountError      error
	CreateError     error
	DeleteError     error

	// Call counters
	ListAllCalls  int
	ListNearCalls int
	CreateCalls   int
}

// NewMockEncodingStore creates a new mock encoding store
func NewMockEncodingStore() *MockEncodingStore {
	return &MockEncodingStore{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// AddEncoding adds a raw encoding row, bypassing the codec. Rows added this
// way have no vector mirror.
func (m *MockEncodingStore) AddEncoding(userID uuid.UUID, encoding string) database.StoredEncoding {
	m.mu.Lock()
	defer m.mu.Unlock()
	enc := database.StoredEncoding{
		ID:        uuid.New(),
		UserID:    userID,
		Encoding:  encoding,
		CreatedAt: m.tick(),
	}
	m.rows = append(m.rows, storedRow{enc: enc})
	return enc
}

// tick returns strictly increasing creation times so storage order is stable.
func (m *MockEncodingStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

// Get retrieves an encoding by ID
func (m *MockEncodingStore) Get(ctx context.Context, id uuid.UUID) (*database.StoredEncoding, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rows {
		if r.enc.ID == id {
			enc := r.enc
			return &enc, nil
		}
	}
	return nil, database.ErrNotFound
}

// ListAll returns every encoding in storage order
func (m *MockEncodingStore) ListAll(ctx context.Context) ([]database.StoredEncoding, error) {
	m.mu.Lock()
	m.ListAllCalls++
	m.mu.Unlock()
	if m.ListAllError != nil {
		return nil, m.ListAllError
	}
	return m.filter(func(storedRow) bool { return true }), nil
}

// ListNear returns encodings whose vector lies within maxDistance of probe.
// Rows without a vector are always included.
func (m *MockEncodingStore) ListNear(ctx context.Context, probe []float64, maxDistance float64) ([]database.StoredEncoding, error) {
	m.mu.Lock()
	m.ListNearCalls++
	m.mu.Unlock()
	if m.ListNearError != nil {
		return nil, m.ListNearError
	}
	return m.filter(func(r storedRow) bool {
		if r.vector == nil || len(r.vector) != len(probe) {
			return true
		}
		var sum float64
		for i := range probe {
			d := probe[i] - r.vector[i]
			sum += d * d
		}
		return math.Sqrt(sum) < maxDistance
	}), nil
}

// ListByUser returns the encodings of one user
func (m *MockEncodingStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]database.StoredEncoding, error) {
	if m.ListByUserError != nil {
		return nil, m.ListByUserError
	}
	return m.filter(func(r storedRow) bool { return r.enc.UserID == userID }), nil
}

// Count returns the total number of encodings
func (m *MockEncodingStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows), nil
}

// Create stores an encoding, assigning ID and CreatedAt when unset
func (m *MockEncodingStore) Create(ctx context.Context, enc *database.StoredEncoding, vector []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	if enc.ID == uuid.Nil {
		enc.ID = uuid.New()
	}
	enc.CreatedAt = m.tick()
	var v []float64
	if vector != nil {
		v = append([]float64(nil), vector...)
	}
	m.rows = append(m.rows, storedRow{enc: *enc, vector: v})
	return nil
}

// Delete removes an encoding by ID
func (m *MockEncodingStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.enc.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

// ListMirrors returns the vector of every row that has one
func (m *MockEncodingStore) ListMirrors(ctx context.Context) (map[uuid.UUID][]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mirrors := make(map[uuid.UUID][]float64)
	for _, r := range m.rows {
		if r.vector != nil {
			mirrors[r.enc.ID] = append([]float64(nil), r.vector...)
		}
	}
	return mirrors, nil
}

// SetMirror replaces the vector of a row
func (m *MockEncodingStore) SetMirror(ctx context.Context, id uuid.UUID, vector []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].enc.ID == id {
			m.rows[i].vector = append([]float64(nil), vector...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *MockEncodingStore) filter(keep func(storedRow) bool) []database.StoredEncoding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredEncoding
	for _, r := range m.rows {
		if keep(r) {
			out = append(out, r.enc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// MockUserStore is an in-memory implementation of database.UserWriter
type MockUserStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*database.User

	// Error injection
	GetUserError        error
	GetUserByEmailError error
	CreateUserError     error
	SetDisabledError    error
}

// NewMockUserStore creates a new mock user store
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[uuid.UUID]*database.User)}
}

// AddUser adds a user with the given email and role and returns it
func (m *MockUserStore) AddUser(email string, role database.Role) *database.User {
	u := &database.User{
		ID:        uuid.New(),
		Email:     database.NormalizeEmail(email),
		FullName:  email,
		Role:      role,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
	clone := *u
	return &clone
}

// GetUser retrieves a user by ID
func (m *MockUserStore) GetUser(ctx context.Context, id uuid.UUID) (*database.User, error) {
	if m.GetUserError != nil {
		return nil, m.GetUserError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

// GetUserByEmail retrieves a user by email
func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	if m.GetUserByEmailError != nil {
		return nil, m.GetUserByEmailError
	}
	email = database.NormalizeEmail(email)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, database.ErrNotFound
}

// CreateUser stores a new user
func (m *MockUserStore) CreateUser(ctx context.Context, user *database.User) error {
	if m.CreateUserError != nil {
		return m.CreateUserError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = database.NormalizeEmail(user.Email)
	for _, u := range m.users {
		if u.Email == user.Email {
			return database.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = database.RoleStudent
	}
	user.CreatedAt = time.Now()
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

// SetDisabled enables or disables an account
func (m *MockUserStore) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	if m.SetDisabledError != nil {
		return m.SetDisabledError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.Disabled = disabled
	return nil
}
