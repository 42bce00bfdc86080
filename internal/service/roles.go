package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
)

const (
	defaultRoleCheckRetries = 1
	defaultRoleCheckBackoff = 200 * time.Millisecond
)

// SessionReader is the read side of the session store.
type SessionReader interface {
	Snapshot() domainauth.Session
}

// RoleResolverOptions groups dependencies for RoleResolver.
type RoleResolverOptions struct {
	Authorizer ports.Authorizer
	Sessions   SessionReader
	// Retries is the number of extra attempts after a transport failure. Negative disables retries.
	Retries int
	// Backoff is the wait before the first retry; each further retry waits one more Backoff.
	Backoff time.Duration
	Logger  *slog.Logger
}

// RoleResolver asks the remote authorization function whether an identity holds a role.
// It keeps no cache: role assignment is administrator-controlled state that may change
// at any time.
type RoleResolver struct {
	authorizer ports.Authorizer
	sessions   SessionReader
	retries    int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewRoleResolver constructs a new RoleResolver.
func NewRoleResolver(opts RoleResolverOptions) *RoleResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := opts.Retries
	if retries == 0 {
		retries = defaultRoleCheckRetries
	}
	if retries < 0 {
		retries = 0
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultRoleCheckBackoff
	}
	return &RoleResolver{
		authorizer: opts.Authorizer,
		sessions:   opts.Sessions,
		retries:    retries,
		backoff:    backoff,
		logger:     logger,
	}
}

// HasRole reports whether identityID holds role.
//
// It fails with domainauth.ErrRoleUnauthorized when no calling identity is signed in, and
// with domainauth.ErrRoleTransport when the authorization function cannot be reached after
// the configured retries. Callers must treat any error exactly like a false result.
func (r *RoleResolver) HasRole(ctx context.Context, identityID string, role domainauth.Role) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("invalid role: %q", role)
	}
	if identityID == "" || !r.sessions.Snapshot().Authenticated() {
		return false, domainauth.ErrRoleUnauthorized
	}

	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			if err := r.wait(ctx, time.Duration(attempt)*r.backoff); err != nil {
				lastErr = err
				break
			}
		}

		ok, err := r.authorizer.HasRole(ctx, role, identityID)
		if err == nil {
			return ok, nil
		}
		if errors.Is(err, domainauth.ErrRoleUnauthorized) {
			return false, domainauth.ErrRoleUnauthorized
		}
		lastErr = err
		r.logger.WarnContext(ctx, "role check failed",
			"user_id", identityID,
			"role", role,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return false, fmt.Errorf("%w: %w", domainauth.ErrRoleTransport, lastErr)
}

func (r *RoleResolver) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
