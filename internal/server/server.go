// Package server exposes the styler over HTTP: a demo admin page, the
// preview and save endpoints, a nonce refresh endpoint, and a websocket
// feed that pushes regenerated CSS to every connected admin page.
//
// Every mutating endpoint runs the security gate before the payload
// touches the sanitizer, and every response uses the same JSON envelope
// so clients have one decoding path.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adminstyler/adminstyler/internal/config"
	"github.com/adminstyler/adminstyler/internal/logging"
	"github.com/adminstyler/adminstyler/internal/security"
)

// SettingsStore is the persistence surface the server needs. Satisfied
// by store.Store; tests substitute an in-memory fake.
type SettingsStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, values map[string]string) error
}

// Dependencies holds everything the server needs injected
type Dependencies struct {
	Logger       logging.Logger
	Store        SettingsStore
	Nonces       *security.NonceService
	Sessions     *security.SessionService
	Capabilities security.CapabilityChecker
	Gate         *security.Gate
}

// Server is the admin styler HTTP server
type Server struct {
	config     *config.Config
	logger     logging.Logger
	store      SettingsStore
	nonces     *security.NonceService
	sessions   *security.SessionService
	caps       security.CapabilityChecker
	gate       *security.Gate
	hub        *Hub
	limiter    *RateLimiter
	httpServer *http.Server
}

// New creates a server from configuration and injected dependencies
func New(cfg *config.Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}

	return &Server{
		config:   cfg,
		logger:   logger.WithComponent("server"),
		store:    deps.Store,
		nonces:   deps.Nonces,
		sessions: deps.Sessions,
		caps:     deps.Capabilities,
		gate:     deps.Gate,
		hub:      NewHub(logger),
		limiter: NewRateLimiter(RateLimitConfig{
			Enabled:           cfg.Security.RateLimitEnabled,
			RequestsPerMinute: cfg.Security.RequestsPerMinute,
			BurstSize:         cfg.Security.BurstSize,
		}, logger),
	}
}

// Handler builds the full routed and middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/preview-css", s.handlePreviewCSS)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/nonce", s.handleNonce)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return Chain(mux,
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.config.Server.AllowedOrigins),
		RateLimitMiddleware(s.limiter, s.logger),
		SecurityHeadersMiddleware(),
	)
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info(ctx, "admin styler listening",
		"addr", addr,
		"environment", s.config.Server.Environment)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.limiter.Stop()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	}
}

// wsMessage is the payload pushed to connected preview pages
type wsMessage struct {
	Type string `json:"type"`
	CSS  string `json:"css,omitempty"`
}

// BroadcastCSS pushes a full replacement stylesheet to all connected
// preview clients. Drops the message if the hub is saturated; the next
// save will push a fresh snapshot anyway.
func (s *Server) BroadcastCSS(css string) {
	payload, err := json.Marshal(wsMessage{Type: "css", CSS: css})
	if err != nil {
		return
	}
	s.hub.Broadcast(payload)
}
