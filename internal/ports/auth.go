package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/cse-console/internal/domain/auth"
)

// IdentityListener receives provider change notifications. A nil identity means signed out.
type IdentityListener func(identity *domainauth.Identity)

// IdentityProvider is the external identity provider the console signs in against.
type IdentityProvider interface {
	// SignInWithPassword verifies the pair and returns the identity.
	// Rejected credentials must be reported as domainauth.ErrInvalidCredentials.
	SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error)

	// GetUser returns the identity of the current provider session, or nil when none exists.
	GetUser(ctx context.Context) (*domainauth.Identity, error)

	// SignOut revokes the current provider session.
	SignOut(ctx context.Context) error

	// Subscribe registers fn for session change events and returns its deregistration func.
	Subscribe(fn IdentityListener) (unsubscribe func())
}

// Refresher is implemented by providers whose sessions expire and can be renewed.
// A successful refresh publishes the renewed identity; a failed one publishes nil.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Authorizer is the remote authorization function. Results are authoritative and never cached.
type Authorizer interface {
	HasRole(ctx context.Context, role domainauth.Role, userID string) (bool, error)
}

// AccessStore is the remote tabular store holding profiles and access-level rows.
// Empty results are absence, not errors.
type AccessStore interface {
	// ListProfiles returns profile rows ordered by email ascending.
	ListProfiles(ctx context.Context) ([]domainauth.ManagedIdentity, error)
	// ListAccessLevels returns every stored access-level row keyed by identity id.
	ListAccessLevels(ctx context.Context) (domainauth.AccessMap, error)
	// UpsertAccessLevel writes the access level for userID.
	UpsertAccessLevel(ctx context.Context, userID string, level domainauth.AccessLevel) error
	// Ping issues a minimal read to verify the store is reachable.
	Ping(ctx context.Context) error
}

// Token is a persisted provider session.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenStore persists the provider session between process restarts.
type TokenStore interface {
	Save(ctx context.Context, tok Token) error
	// Load returns nil and no error when nothing is stored.
	Load(ctx context.Context) (*Token, error)
	Clear(ctx context.Context) error
}
