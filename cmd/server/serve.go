package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dpshade/wakatime-mcp/internal/auth"
	"github.com/dpshade/wakatime-mcp/internal/config"
	"github.com/dpshade/wakatime-mcp/internal/mcp"
	"github.com/dpshade/wakatime-mcp/internal/middleware"
	"github.com/dpshade/wakatime-mcp/internal/modules"
	"github.com/dpshade/wakatime-mcp/internal/usage"
)

// shutdownTimeout gives in-flight requests time to complete.
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP HTTP server",
	Long: `Serves MCP over HTTP at /mcp (POST for inline JSON-RPC, GET for an SSE
session) and a liveness probe at /health.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := newRegistry(cfg, logger, metrics)
	if err != nil {
		return err
	}

	var recorder usage.Recorder = usage.Nop{}
	var db pinger
	if cfg.Database.URL != "" {
		store, err := usage.Open(ctx, cfg.Database.URL, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder, db = store, store
		logger.Info("usage log enabled")
	}

	handler, cleanup := newHTTPHandler(cfg, registry, recorder, db, logger)
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting MCP server", zap.String("addr", srv.Addr), zap.String("path", config.MCPPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// pinger reports database health for /health.
type pinger interface {
	Ping(ctx context.Context) error
}

// newHTTPHandler wires the routes. cleanup releases the rate limiter.
func newHTTPHandler(cfg *config.Config, registry *modules.Registry, recorder usage.Recorder, db pinger, logger *zap.Logger) (http.Handler, func()) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(registry, db))

	var verifier *auth.Verifier
	if cfg.Server.AuthSecret != "" {
		verifier = auth.NewVerifier([]byte(cfg.Server.AuthSecret))
	} else {
		logger.Warn("MCP_AUTH_SECRET not set, /mcp accepts anonymous callers")
	}
	authorizer := middleware.NewAuthorizer(verifier, logger)

	// MCP endpoint with authorization + rate limit + transport middleware
	var endpoint http.Handler = middleware.Transport(mcp.NewHandler(registry, recorder, logger), logger, config.MCPPath)
	cleanup := func() {}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit)
		endpoint = limiter.Middleware(endpoint)
		cleanup = limiter.Close
	}
	endpoint = middleware.Recovery(logger)(middleware.RequestID(authorizer.Authorize(endpoint)))
	mux.Handle(config.MCPPath, endpoint)

	return mux, cleanup
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Tools   int    `json:"tools"`
	DB      string `json:"db,omitempty"`
}

func healthHandler(registry *modules.Registry, db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Version: mcp.ServerVersion, Tools: len(registry.Tools())}
		status := http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			resp.DB = "ok"
			if err := db.Ping(ctx); err != nil {
				resp.Status, resp.DB = "degraded", "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
