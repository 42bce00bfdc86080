package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/target/cse-console/config"
	"github.com/target/cse-console/internal/adapters/devauth"
	"github.com/target/cse-console/internal/adapters/oidc"
	redisadapter "github.com/target/cse-console/internal/adapters/redis"
	"github.com/target/cse-console/internal/adapters/supabase"
	"github.com/target/cse-console/internal/ports"
)

var errRedisRequired = errors.New("this auth mode requires redis for token persistence")

// AuthConfig contains what the identity provider builders need.
type AuthConfig struct {
	Auth config.AuthConfig
	// Tokens persists the provider session. Required for the oidc and supabase modes.
	Tokens ports.TokenStore
	// Supabase is shared with the authorizer and access store when they also use Supabase.
	Supabase *supabase.Client
	Logger   *slog.Logger
}

// BuildTokenStore creates the Redis-backed token store. Nil client means no persistence.
func BuildTokenStore(client redis.UniversalClient, cfg config.TokenConfig) ports.TokenStore {
	if client == nil {
		return nil
	}
	return redisadapter.NewTokenStore(client, redisadapter.TokenStoreOptions{
		Key: cfg.Key,
		TTL: cfg.TTL,
	})
}

// BuildSupabaseClient creates the REST client shared by the Supabase adapters.
func BuildSupabaseClient(cfg config.SupabaseConfig, tokens ports.TokenStore) (*supabase.Client, error) {
	client, err := supabase.NewClient(supabase.Config{
		URL:        cfg.URL,
		AnonKey:    cfg.AnonKey,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}, tokens)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// BuildIdentityProvider creates the identity provider for the configured auth mode.
//
//nolint:ireturn // the provider implementation is chosen at runtime.
func BuildIdentityProvider(ctx context.Context, cfg AuthConfig) (ports.IdentityProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevAuthProvider(cfg)
	case config.AuthModeOIDC:
		return buildOIDCProvider(ctx, cfg)
	case config.AuthModeSupabase:
		return buildSupabaseProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

//nolint:ireturn // see BuildIdentityProvider.
func buildDevAuthProvider(cfg AuthConfig) (ports.IdentityProvider, error) {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:       cfg.Auth.DevAuth.UserID,
		Email:        cfg.Auth.DevAuth.Email,
		DisplayName:  cfg.Auth.DevAuth.DisplayName,
		PasswordHash: cfg.Auth.DevAuth.PasswordHash,
	})
	if err != nil {
		return nil, fmt.Errorf("create dev auth provider: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Warn("development auth enabled", "email", cfg.Auth.DevAuth.Email)
	}
	return prov, nil
}

//nolint:ireturn // see BuildIdentityProvider.
func buildOIDCProvider(ctx context.Context, cfg AuthConfig) (ports.IdentityProvider, error) {
	if cfg.Tokens == nil {
		return nil, errRedisRequired
	}
	o := cfg.Auth.OIDC
	prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Scope:        o.Scope,
		DiscoveryURL: o.DiscoveryURL,
		EmailClaim:   o.EmailClaim,
		NameClaim:    o.NameClaim,
		Tokens:       cfg.Tokens,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create oidc provider: %w", err)
	}
	return prov, nil
}

//nolint:ireturn // see BuildIdentityProvider.
func buildSupabaseProvider(cfg AuthConfig) (ports.IdentityProvider, error) {
	if cfg.Tokens == nil {
		return nil, errRedisRequired
	}
	client := cfg.Supabase
	if client == nil {
		var err error
		if client, err = BuildSupabaseClient(cfg.Auth.Supabase, cfg.Tokens); err != nil {
			return nil, err
		}
	}
	prov, err := supabase.NewProvider(client, cfg.Tokens, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create supabase provider: %w", err)
	}
	return prov, nil
}
