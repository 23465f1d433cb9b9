// Package app orchestrates the proxy's components: configuration,
// credentials, the upstream client, and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/corvidlabs/vertexpass/internal/credentials"
	"github.com/corvidlabs/vertexpass/internal/httpapi"
	"github.com/corvidlabs/vertexpass/internal/metrics"
	"github.com/corvidlabs/vertexpass/internal/upstream"
)

// App orchestrates the lifecycle of the proxy server and related services.
type App struct {
	cfg    *Config
	server *httpapi.Server
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	source, err := cfg.Credentials.NewSource()
	if err != nil {
		return nil, fmt.Errorf("failed to create credential source: %w", err)
	}

	// I/O deferred to first Token() call
	provider, err := credentials.NewProvider(source)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential provider: %w", err)
	}

	backend, err := upstream.NewVertexBackend(cfg.Upstream.URL, cfg.Upstream.OpenAIModelName, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream backend: %w", err)
	}

	m := metrics.New()
	client := upstream.NewClient(backend, m,
		upstream.WithRetry(cfg.Retry.RetryEnabled(), cfg.Retry.MaxAttempts),
	)

	return &App{
		cfg:    cfg,
		server: httpapi.New(client, m, cfg.Transmission.Mode, cfg.Upstream.Model),
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting proxy server", "address", address)
	serverErrCh, err := a.server.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
