package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/cse-console/config"
	httpx "github.com/target/cse-console/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config  *config.AppConfig
	Console *Console
	Logger  *slog.Logger
	// ErrCh receives a listen failure. Optional.
	ErrCh chan<- error
}

// BuildRouter creates the console router for c.
func BuildRouter(cfg *config.AppConfig, c *Console, logger *slog.Logger) (*httpx.Router, error) {
	return httpx.NewRouter(httpx.RouterServices{
		Sessions:       c.Sessions,
		Gateway:        c.Gateway,
		Admin:          c.Admin,
		Store:          c.Store,
		CookieDomain:   cfg.HTTP.CookieDomain,
		CookieSecure:   cfg.HTTP.CookieSecure,
		PredictURL:     cfg.HTTP.PredictURL,
		LoadingRefresh: cfg.HTTP.LoadingRefresh,
		Logger:         logger,
	})
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server and router for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, *httpx.Router, error) {
	if cfg == nil || cfg.Config == nil || cfg.Console == nil {
		return nil, nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router, err := BuildRouter(cfg.Config, cfg.Console, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build router: %w", err)
	}

	server := startServer(logger, buildHTTPHandler(logger, router), cfg.Config.HTTP.Addr, cfg.ErrCh)
	return server, router, nil
}

// buildHTTPHandler applies the outer middleware. Order: Recover -> Logging -> Router.
func buildHTTPHandler(logger *slog.Logger, router http.Handler) http.Handler {
	h := httpx.Logging(logger)(router)
	h = httpx.Recover(logger)(h)
	return h
}

func startServer(logger *slog.Logger, handler http.Handler, addr string, errCh chan<- error) *http.Server {
	// Guard against empty addr to avoid listening on every interface
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if errCh != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Server  *http.Server
	Router  *httpx.Router
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server and discards open admin sessions.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Router != nil {
		defer cfg.Router.Close()
	}
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = shutdownWaitTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
