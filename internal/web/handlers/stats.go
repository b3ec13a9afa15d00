package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/kozaktomas/uniportal/internal/database"
	"github.com/kozaktomas/uniportal/internal/web/middleware"
)

const statsCacheTTL = time.Minute

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

// StatsHandler reports enrollment statistics to administrators
type StatsHandler struct {
	encodings database.EncodingReader
	cache     statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(encodings database.EncodingReader) *StatsHandler {
	return &StatsHandler{encodings: encodings}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	TotalEncodings int    `json:"total_encodings"`
	GeneratedAt    string `json:"generated_at"`
}

// Get returns enrollment statistics
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil || !user.IsAdmin() {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	count, err := h.encodings.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count face encodings")
		return
	}

	stats := &StatsResponse{
		TotalEncodings: count,
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	h.cache.set(stats)
	respondJSON(w, http.StatusOK, stats)
}
