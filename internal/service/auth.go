package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
)

// SessionWriter is the write side of the session store used by the gateway.
type SessionWriter interface {
	OnIdentityChanged(identity *domainauth.Identity)
	Snapshot() domainauth.Session
}

// AuthGatewayOptions groups dependencies for AuthGateway.
type AuthGatewayOptions struct {
	Provider ports.IdentityProvider
	Sessions SessionWriter
	Logger   *slog.Logger
}

// AuthGateway wraps sign-in and sign-out against the identity provider and keeps the
// session store in step with the outcome.
type AuthGateway struct {
	provider ports.IdentityProvider
	sessions SessionWriter
	logger   *slog.Logger
}

// NewAuthGateway constructs a new AuthGateway.
func NewAuthGateway(opts AuthGatewayOptions) *AuthGateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthGateway{
		provider: opts.Provider,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

// SignIn verifies the credentials with the provider. On success the session store
// reflects the new identity before SignIn returns.
func (g *AuthGateway) SignIn(ctx context.Context, email, password string) (domainauth.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}

	identity, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, domainauth.ErrInvalidCredentials) {
			g.logger.InfoContext(ctx, "sign in rejected", "email", email)
			return domainauth.Identity{}, domainauth.ErrInvalidCredentials
		}
		g.logger.WarnContext(ctx, "sign in failed", "email", email, "error", err)
		return domainauth.Identity{}, fmt.Errorf("%w: sign in: %w", domainauth.ErrNetwork, err)
	}

	g.sessions.OnIdentityChanged(&identity)
	g.logger.InfoContext(ctx, "signed in", "user_id", identity.ID)
	return identity, nil
}

// SignOut clears the local session first, whatever the remote outcome. A failed remote
// revoke is returned as domainauth.ErrNetwork for the caller to show as a warning; the
// console is already signed out when it does.
func (g *AuthGateway) SignOut(ctx context.Context) error {
	g.sessions.OnIdentityChanged(nil)

	if err := g.provider.SignOut(ctx); err != nil {
		g.logger.WarnContext(ctx, "remote sign out failed", "error", err)
		return fmt.Errorf("%w: sign out: %w", domainauth.ErrNetwork, err)
	}
	return nil
}

// Current returns the session store's current value.
func (g *AuthGateway) Current() domainauth.Session {
	return g.sessions.Snapshot()
}
