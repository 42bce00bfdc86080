package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/cse-console/config"
	"github.com/target/cse-console/internal/adapters/supabase"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	httpx "github.com/target/cse-console/internal/http"
	"github.com/target/cse-console/internal/ports"
	"github.com/target/cse-console/internal/service"
	"github.com/target/cse-console/internal/session"
)

const shutdownWaitTimeout = 10 * time.Second

// ConsoleDeps contains the infrastructure a Console is built on.
type ConsoleDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	// Tokens overrides the Redis token store, e.g. for a short-lived CLI session.
	Tokens ports.TokenStore
	Logger *slog.Logger
}

// Console holds the wired access-control components of one console process.
type Console struct {
	Provider ports.IdentityProvider
	Tokens   ports.TokenStore
	Sessions *session.Store
	Gateway  *service.AuthGateway
	Roles    *service.RoleResolver
	Admin    *service.AdminFlow
	Store    ports.AccessStore

	logger *slog.Logger
}

// NewConsole builds the identity provider, access backend and services for cfg.
// Call Start to resolve the initial session.
func NewConsole(ctx context.Context, deps *ConsoleDeps) (*Console, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("console config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens := deps.Tokens
	if tokens == nil && cfg.NeedsTokenStore() {
		tokens = BuildTokenStore(deps.RedisClient, cfg.Auth.Tokens)
		if tokens == nil {
			return nil, errRedisRequired
		}
	}

	var sb *supabase.Client
	if cfg.Auth.Mode == config.AuthModeSupabase || cfg.Store.Mode == config.StoreModeSupabase {
		var err error
		if sb, err = BuildSupabaseClient(cfg.Auth.Supabase, tokens); err != nil {
			return nil, err
		}
	}

	provider, err := BuildIdentityProvider(ctx, AuthConfig{
		Auth:     cfg.Auth,
		Tokens:   tokens,
		Supabase: sb,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	sessions := session.New(provider, session.Options{Logger: logger})

	backend, err := BuildBackend(BackendConfig{
		Config:   cfg,
		DB:       deps.DB,
		Supabase: sb,
		Sessions: sessions,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	gateway := service.NewAuthGateway(service.AuthGatewayOptions{
		Provider: provider,
		Sessions: sessions,
		Logger:   logger,
	})
	roles := service.NewRoleResolver(service.RoleResolverOptions{
		Authorizer: backend.Authorizer,
		Sessions:   sessions,
		Retries:    cfg.RoleCheck.ResolverRetries(),
		Backoff:    cfg.RoleCheck.Backoff,
		Logger:     logger,
	})
	admin := service.NewAdminFlow(service.AdminFlowOptions{
		Gateway:  gateway,
		Roles:    roles,
		Store:    backend.Store,
		Sessions: sessions,
		Logger:   logger,
	})

	return &Console{
		Provider: provider,
		Tokens:   tokens,
		Sessions: sessions,
		Gateway:  gateway,
		Roles:    roles,
		Admin:    admin,
		Store:    backend.Store,
		logger:   logger,
	}, nil
}

// Start resolves the persisted session. An unreachable provider leaves the console signed
// out rather than failing startup.
func (c *Console) Start(ctx context.Context) error {
	err := c.Sessions.Initialize(ctx)
	if errors.Is(err, domainauth.ErrNetwork) {
		c.logger.WarnContext(ctx, "could not restore session, starting signed out", "error", err)
		return nil
	}
	return err
}

// Close releases the session store.
func (c *Console) Close() {
	c.Sessions.Close()
}

// tokenRefresher returns the background refresher when the provider supports renewal.
func (c *Console) tokenRefresher(interval time.Duration) (*service.TokenRefresher, bool) {
	r, ok := c.Provider.(ports.Refresher)
	if !ok || c.Tokens == nil {
		return nil, false
	}
	tr, err := service.NewTokenRefresher(service.TokenRefresherOptions{
		Refresher: r,
		Tokens:    c.Tokens,
		Interval:  interval,
		Logger:    c.logger,
	})
	if err != nil {
		c.logger.Warn("token refresher disabled", "error", err)
		return nil, false
	}
	return tr, true
}

// RunConfig contains dependencies for RunConsoleWithShutdown.
type RunConfig struct {
	Config  *config.AppConfig
	Console *Console
	Logger  *slog.Logger
}

// RunConsoleWithShutdown serves the console until SIGINT/SIGTERM or a server failure.
func RunConsoleWithShutdown(cfg *RunConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Console == nil {
		return errors.New("run config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfg.Console.Start(ctx); err != nil {
		return fmt.Errorf("start console: %w", err)
	}
	defer cfg.Console.Close()

	errCh := make(chan error, 2)
	server, router, err := StartHTTPServer(&HTTPServerConfig{
		Config:  cfg.Config,
		Console: cfg.Console,
		Logger:  logger,
		ErrCh:   errCh,
	})
	if err != nil {
		return err
	}

	var backgrounds []<-chan struct{}
	if tr, ok := cfg.Console.tokenRefresher(cfg.Config.Auth.Tokens.RefreshInterval); ok {
		backgrounds = append(backgrounds, launchBackground(ctx, "token refresher", tr.Run, errCh, logger))
	}

	return waitForShutdown(shutdownConfig{
		ctx:         ctx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		router:      router,
		timeout:     cfg.Config.HTTP.ShutdownTimeout,
		logger:      logger,
		backgrounds: backgrounds,
	})
}

func launchBackground(
	ctx context.Context,
	name string,
	run func(context.Context) error,
	errCh chan<- error,
	logger *slog.Logger,
) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(name+" failed", "error", err)
			select {
			case errCh <- fmt.Errorf("%s: %w", name, err):
			default:
			}
		}
	}()
	return done
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	router      *httpx.Router
	timeout     time.Duration
	logger      *slog.Logger
	backgrounds []<-chan struct{}
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down console...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops the HTTP server, then waits for background services.
func gracefulStop(cfg shutdownConfig) error {
	if err := ShutdownHTTPServer(ShutdownConfig{
		Server:  cfg.httpServer,
		Router:  cfg.router,
		Timeout: cfg.timeout,
		Logger:  cfg.logger,
	}); err != nil {
		return err
	}

	for _, done := range cfg.backgrounds {
		select {
		case <-done:
		case <-time.After(shutdownWaitTimeout):
			cfg.logger.Warn("timeout waiting for background service to stop")
		}
	}
	return nil
}
