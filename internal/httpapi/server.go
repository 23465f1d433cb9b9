// Package httpapi exposes the proxy's OpenAI-compatible HTTP surface: chat
// completions, the model listing, health, and the prometheus exposition.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/corvidlabs/vertexpass/internal/classify"
	"github.com/corvidlabs/vertexpass/internal/metrics"
	"github.com/corvidlabs/vertexpass/internal/upstream"
)

// Server is the proxy's HTTP front end.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New wires the handler set around the upstream client and counters.
func New(client *upstream.Client, m *metrics.Metrics, configuredMode classify.Mode, upstreamModel string) *Server {
	logger := slog.Default()

	chat := &ChatCompletionsHandler{
		Upstream:       client,
		Metrics:        m,
		ConfiguredMode: configuredMode,
		UpstreamModel:  upstreamModel,
	}
	models := NewModelsHandler([]string{client.Backend().DisplayModelName()})
	health := &HealthHandler{Metrics: m}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat/completions", applyMiddlewares(chat,
		Logging(logger),
		Recovery,
	))
	mux.Handle("GET /v1/models", applyMiddlewares(models,
		Logging(logger),
		Recovery,
	))
	mux.Handle("GET /health", health)
	mux.Handle("GET /metrics", m.Handler())

	return &Server{mux: mux}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second, // Inbound: Read entire client request (DoS protection against slow clients)
		WriteTimeout: 15 * time.Minute, // Inbound: Write entire response to client (allows long SSE streams, still bounded)
		IdleTimeout:  90 * time.Second, // Inbound: Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
