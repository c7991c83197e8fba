// ABOUTME: HTTP handlers for the operations API.
// ABOUTME: Exposes cache statistics, invalidation, pre-warming, and billing event ingestion.

package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CacheStatsResponse holds subscription cache counters.
type CacheStatsResponse struct {
	TotalEntries   int     `json:"total_entries"`
	ActiveEntries  int     `json:"active_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	TotalRequests  int64   `json:"total_requests"`
	CacheHits      int64   `json:"cache_hits"`
	HitRate        float64 `json:"hit_rate"`
}

// ConversationStatsResponse holds linking-flow counters.
type ConversationStatsResponse struct {
	Total         int `json:"total"`
	AwaitingEmail int `json:"awaiting_email"`
	Verified      int `json:"verified"`
	Expired       int `json:"expired"`
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status        string                    `json:"status"`
	Conversations ConversationStatsResponse `json:"conversations"`
	Cache         CacheStatsResponse        `json:"cache"`
}

// StatsResponse is the JSON response for GET /api/cache/stats.
type StatsResponse struct {
	Cache         CacheStatsResponse        `json:"cache"`
	Conversations ConversationStatsResponse `json:"conversations"`
}

// InvalidateResponse is the JSON response for cache invalidation endpoints.
type InvalidateResponse struct {
	UserKey string `json:"user_key,omitempty"`
	Status  string `json:"status"`
}

// PreWarmResponse is the JSON response for POST /api/cache/prewarm/{userKey}.
type PreWarmResponse struct {
	UserKey            string `json:"user_key"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

// BillingEventRequest is the JSON request body for POST /api/billing/events.
// ID is optional; one is generated when the upstream processor omits it.
type BillingEventRequest struct {
	ID      string `json:"id,omitempty"`
	UserKey string `json:"user_key"`
	Status  string `json:"status,omitempty"`
}

// BillingEventResponse is the JSON response for POST /api/billing/events.
type BillingEventResponse struct {
	EventID   string `json:"event_id"`
	UserKey   string `json:"user_key"`
	Prewarmed bool   `json:"prewarmed"`
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendJSON writes a JSON response with the given status code.
func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// userKeyFromPath extracts the trailing path segment after the given prefix.
func userKeyFromPath(r *http.Request, prefix string) string {
	return strings.TrimPrefix(r.URL.Path, prefix)
}

// handleCacheStats handles GET /api/cache/stats requests.
func (g *Gateway) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cacheStats := g.cache.Stats()
	stateStats := g.states.Stats()
	g.sendJSON(w, http.StatusOK, StatsResponse{
		Cache: CacheStatsResponse{
			TotalEntries:   cacheStats.TotalEntries,
			ActiveEntries:  cacheStats.ActiveEntries,
			ExpiredEntries: cacheStats.ExpiredEntries,
			TotalRequests:  cacheStats.TotalRequests,
			CacheHits:      cacheStats.CacheHits,
			HitRate:        cacheStats.HitRate,
		},
		Conversations: ConversationStatsResponse{
			Total:         stateStats.Total,
			AwaitingEmail: stateStats.AwaitingEmail,
			Verified:      stateStats.Verified,
			Expired:       stateStats.Expired,
		},
	})
}

// handleInvalidate handles POST /api/cache/invalidate/{userKey} requests.
func (g *Gateway) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userKey := userKeyFromPath(r, "/api/cache/invalidate/")
	if userKey == "" {
		g.sendJSONError(w, http.StatusBadRequest, "user key required")
		return
	}

	g.cache.Invalidate(userKey)
	g.logger.Info("cache entry invalidated via API", "user_key", userKey)
	g.sendJSON(w, http.StatusOK, InvalidateResponse{UserKey: userKey, Status: "invalidated"})
}

// handleInvalidateAll handles POST /api/cache/invalidate-all requests.
func (g *Gateway) handleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	g.cache.InvalidateAll()
	g.logger.Info("cache flushed via API")
	g.sendJSON(w, http.StatusOK, InvalidateResponse{Status: "invalidated"})
}

// handlePreWarm handles POST /api/cache/prewarm/{userKey} requests.
func (g *Gateway) handlePreWarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userKey := userKeyFromPath(r, "/api/cache/prewarm/")
	if userKey == "" {
		g.sendJSONError(w, http.StatusBadRequest, "user key required")
		return
	}

	result := g.cache.PreWarm(r.Context(), userKey)
	g.sendJSON(w, http.StatusOK, PreWarmResponse{
		UserKey:            userKey,
		SubscriptionStatus: result.Status,
	})
}

// handleBillingEvent handles POST /api/billing/events requests.
// A billing event invalidates the user's cached status so the change is
// visible on their next message instead of after a TTL.
func (g *Gateway) handleBillingEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req BillingEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserKey == "" {
		g.sendJSONError(w, http.StatusBadRequest, "user_key is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	g.cache.Invalidate(req.UserKey)

	prewarmed := false
	if g.config.Cache.PrewarmOnBillingEvent {
		g.cache.PreWarm(r.Context(), req.UserKey)
		prewarmed = true
	}

	g.logger.Info("billing event processed",
		"event_id", req.ID,
		"user_key", req.UserKey,
		"status", req.Status,
		"prewarmed", prewarmed,
	)

	g.sendJSON(w, http.StatusAccepted, BillingEventResponse{
		EventID:   req.ID,
		UserKey:   req.UserKey,
		Prewarmed: prewarmed,
	})
}
