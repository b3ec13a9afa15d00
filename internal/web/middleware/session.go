package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/uniportal/internal/database"
)

const (
	sessionCookieName      = "access_token"
	defaultSessionDuration = 15 * time.Minute
	sessionCleanupInterval = 10 * time.Minute
)

// Session is an authenticated portal session. Its ID doubles as the bearer access token.
type Session struct {
	ID        string
	UserID    uuid.UUID
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionRepository persists sessions so they survive restarts.
type SessionRepository interface {
	Save(ctx context.Context, s *Session) error
	// Get returns nil, nil when the session does not exist or has expired.
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionManager handles session creation and validation
type SessionManager struct {
	secret   []byte
	duration time.Duration
	repo     SessionRepository
	sessions map[string]*Session
	mu       sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a new session manager. repo may be nil, in which
// case sessions only live in memory.
func NewSessionManager(secret string, repo SessionRepository) *SessionManager {
	// Use a default secret if none provided (for development)
	if secret == "" {
		secret = "uniportal-dev-secret-change-in-production"
	}
	sm := &SessionManager{
		secret:   []byte(secret),
		duration: defaultSessionDuration,
		repo:     repo,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	go sm.cleanupLoop()
	return sm
}

// SetDuration changes the lifetime of newly created sessions.
func (sm *SessionManager) SetDuration(d time.Duration) {
	if d > 0 {
		sm.duration = d
	}
}

// Duration returns the lifetime of new sessions.
func (sm *SessionManager) Duration() time.Duration {
	return sm.duration
}

// CreateSession creates a new session for a user
func (sm *SessionManager) CreateSession(ctx context.Context, userID uuid.UUID, email string) (*Session, error) {
	idBytes := make([]byte, 32)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		ID:        base64.RawURLEncoding.EncodeToString(idBytes),
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.duration),
	}

	if sm.repo != nil {
		if err := sm.repo.Save(ctx, session); err != nil {
			return nil, err
		}
	}

	sm.mu.Lock()
	sm.sessions[session.ID] = session
	sm.mu.Unlock()

	return session, nil
}

// IssueSession creates a session for a verified user and returns its access token.
func (sm *SessionManager) IssueSession(ctx context.Context, user *database.User) (string, time.Time, error) {
	session, err := sm.CreateSession(ctx, user.ID, user.Email)
	if err != nil {
		return "", time.Time{}, err
	}
	return session.ID, session.ExpiresAt, nil
}

// GetSession retrieves a session by ID, falling back to the repository on a cache miss.
func (sm *SessionManager) GetSession(ctx context.Context, sessionID string) *Session {
	sm.mu.RLock()
	session, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()

	if !ok && sm.repo != nil {
		stored, err := sm.repo.Get(ctx, sessionID)
		if err != nil {
			log.Printf("warning: failed to load session: %v", err)
			return nil
		}
		if stored != nil {
			sm.mu.Lock()
			sm.sessions[sessionID] = stored
			sm.mu.Unlock()
			session, ok = stored, true
		}
	}
	if !ok {
		return nil
	}

	if time.Now().After(session.ExpiresAt) {
		sm.DeleteSession(ctx, sessionID)
		return nil
	}

	return session
}

// DeleteSession removes a session
func (sm *SessionManager) DeleteSession(ctx context.Context, sessionID string) {
	sm.mu.Lock()
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if sm.repo != nil {
		if err := sm.repo.Delete(ctx, sessionID); err != nil {
			log.Printf("warning: failed to delete session: %v", err)
		}
	}
}

// cleanupLoop periodically drops expired sessions from memory and the repository.
func (sm *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			sm.cleanupExpired(context.Background())
		}
	}
}

func (sm *SessionManager) cleanupExpired(ctx context.Context) {
	now := time.Now()
	sm.mu.Lock()
	for id, s := range sm.sessions {
		if now.After(s.ExpiresAt) {
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	if sm.repo != nil {
		if n, err := sm.repo.DeleteExpired(ctx); err != nil {
			log.Printf("warning: failed to delete expired sessions: %v", err)
		} else if n > 0 {
			log.Printf("Deleted %d expired sessions", n)
		}
	}
}

// Stop ends the cleanup goroutine.
func (sm *SessionManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

// SetSessionCookie sets the signed session cookie on the response
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID + "." + sm.signData(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sm.duration.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// GetSessionFromRequest extracts the session from the signed cookie or a Bearer token.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if sessionID, signature, ok := strings.Cut(cookie.Value, "."); ok && sm.verifySignature(sessionID, signature) {
			if session := sm.GetSession(r.Context(), sessionID); session != nil {
				return session
			}
		}
	}

	if sessionID, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && sessionID != "" {
		return sm.GetSession(r.Context(), sessionID)
	}

	return nil
}

// isSecureRequest reports whether the request arrived over HTTPS, directly or via a proxy.
func isSecureRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// signData creates an HMAC signature for data
func (sm *SessionManager) signData(data string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// verifySignature verifies an HMAC signature
func (sm *SessionManager) verifySignature(data, signature string) bool {
	expected := sm.signData(data)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// SessionData is a helper struct for JSON responses
type SessionData struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

// ToJSON returns the session data for JSON response
func (s *Session) ToJSON() SessionData {
	return SessionData{
		SessionID: s.ID,
		UserID:    s.UserID.String(),
		ExpiresAt: s.ExpiresAt.Format(time.RFC3339),
	}
}

// MarshalJSON implements json.Marshaler (excludes the email)
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToJSON())
}
