// ABOUTME: Gateway orchestrator that wires the profile store, caches, and access gate
// ABOUTME: Manages the operations HTTP server and component lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/2389/fold-concierge/internal/auth"
	"github.com/2389/fold-concierge/internal/config"
	"github.com/2389/fold-concierge/internal/gate"
	"github.com/2389/fold-concierge/internal/profile"
	"github.com/2389/fold-concierge/internal/state"
	"github.com/2389/fold-concierge/internal/subcache"
)

// Gateway orchestrates the fold-concierge server components.
// It owns the member profile store, the conversation state manager, the
// subscription cache, the access gate, and the operations HTTP server.
type Gateway struct {
	config     *config.Config
	profiles   profile.Store
	states     *state.Manager
	cache      *subcache.Cache
	gate       *gate.Gate
	httpServer *http.Server
	logger     *slog.Logger
}

// initStore creates the profile store based on config and environment.
func initStore(cfg *config.Config) (profile.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("CONCIERGE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := profile.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing profile store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration. The
// dispatcher may be nil; active members then get a placeholder reply.
func New(cfg *config.Config, dispatcher gate.Dispatcher, logger *slog.Logger) (*Gateway, error) {
	profiles, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	states := state.NewManager(
		cfg.Conversations.Timeout,
		cfg.Conversations.SweepInterval,
		logger.With("component", "state"),
	)

	cacheOpts := []subcache.Option{
		subcache.WithCacheUnknown(cfg.Cache.CacheUnknown),
		subcache.WithSingleFlight(cfg.Cache.SingleFlight),
	}
	cache := subcache.New(
		profiles,
		cfg.Cache.TTL,
		cfg.Cache.SweepInterval,
		logger.With("component", "subcache"),
		cacheOpts...,
	)

	gw := &Gateway{
		config:   cfg,
		profiles: profiles,
		states:   states,
		cache:    cache,
		gate:     gate.New(states, cache, profiles, dispatcher, logger),
		logger:   logger.With("component", "gateway"),
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("/healthz", gw.handleHealth)

	// Operations API - token required
	requireToken := auth.RequireToken(verifier)
	mux.Handle("/api/cache/stats", requireToken(http.HandlerFunc(gw.handleCacheStats)))
	mux.Handle("/api/cache/invalidate/", requireToken(http.HandlerFunc(gw.handleInvalidate)))
	mux.Handle("/api/cache/invalidate-all", requireToken(http.HandlerFunc(gw.handleInvalidateAll)))
	mux.Handle("/api/cache/prewarm/", requireToken(http.HandlerFunc(gw.handlePreWarm)))
	mux.Handle("/api/billing/events", requireToken(http.HandlerFunc(gw.handleBillingEvent)))

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Inbound authorizes one chat message through the access gate and returns
// the reply to deliver. Transports call this for every message.
func (g *Gateway) Inbound(ctx context.Context, msg gate.Message) gate.Reply {
	return g.gate.HandleMessage(ctx, msg)
}

// Run starts the operations HTTP server and blocks until the context is
// canceled. Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("operations API listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes every component. Both in-memory
// stores discard their contents; only the profile database survives restarts.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.cache.Close()
	g.states.Close()

	if err := g.profiles.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns liveness plus store snapshots for probes and humans.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	stateStats := g.states.Stats()
	cacheStats := g.cache.Stats()

	g.sendJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Conversations: ConversationStatsResponse{
			Total:         stateStats.Total,
			AwaitingEmail: stateStats.AwaitingEmail,
			Verified:      stateStats.Verified,
			Expired:       stateStats.Expired,
		},
		Cache: CacheStatsResponse{
			TotalEntries:   cacheStats.TotalEntries,
			ActiveEntries:  cacheStats.ActiveEntries,
			ExpiredEntries: cacheStats.ExpiredEntries,
			TotalRequests:  cacheStats.TotalRequests,
			CacheHits:      cacheStats.CacheHits,
			HitRate:        cacheStats.HitRate,
		},
	})
}
