// Package gateway exposes the HTTP surface of the bot: a health probe
// and Prometheus metrics. It is a leaf package; nothing imports it
// except the command wiring.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dbrain-dev/dbrain/internal/provider"
)

// Gateway is the HTTP server for operational endpoints.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	metrics   *Metrics
	selector  *provider.Selector
	vaultPath string

	server    *http.Server
	startedAt time.Time
}

// New builds a gateway. Metrics may be shared with the rest of the
// process; a nil value gets a fresh instance.
func New(cfg Config, vaultPath string, selector *provider.Selector, metrics *Metrics, logger *slog.Logger) *Gateway {
	cfg.defaults()
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:    cfg,
		logger:    logger.With("component", "gateway"),
		metrics:   metrics,
		selector:  selector,
		vaultPath: vaultPath,
	}
}

// Metrics returns the collector set served at /metrics.
func (g *Gateway) Metrics() *Metrics {
	return g.metrics
}

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metrics.Handler())
	return r
}

// Start binds the listener and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully with the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
