package httpx

import (
	"context"

	domainauth "github.com/target/cse-console/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the session the route guard admitted.
func SetSessionInContext(ctx context.Context, s domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session stored by RequireSession and whether one was set.
func SessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return s, ok
}

// IdentityFromContext returns the admitted identity, or nil.
func IdentityFromContext(ctx context.Context) *domainauth.Identity {
	s, _ := SessionFromContext(ctx)
	return s.Identity
}
