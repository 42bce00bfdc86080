package service

import (
	"context"
	"log/slog"
	"strings"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
)

// AdminFlowOptions groups dependencies for AdminFlow.
type AdminFlowOptions struct {
	Gateway  *AuthGateway
	Roles    RoleChecker
	Store    ports.AccessStore
	Sessions SessionReader
	Logger   *slog.Logger
}

// AdminFlow is the administrator entry point: it signs the operator in, confirms the admin
// role and only then hands out an AccessDirectory.
type AdminFlow struct {
	gateway  *AuthGateway
	roles    RoleChecker
	store    ports.AccessStore
	sessions SessionReader
	logger   *slog.Logger
}

// NewAdminFlow constructs a new AdminFlow.
func NewAdminFlow(opts AdminFlowOptions) *AdminFlow {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminFlow{
		gateway:  opts.Gateway,
		roles:    opts.Roles,
		store:    opts.Store,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

// Login signs in with the given credentials and opens the directory.
// Sign-in failures are returned as the gateway reports them. A failed or negative admin
// check returns domainauth.ErrAccessDenied; the operator stays signed in.
func (f *AdminFlow) Login(ctx context.Context, email, password string) (*AccessDirectory, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := f.gateway.SignIn(ctx, email, password); err != nil {
		return nil, err
	}
	return f.Open(ctx)
}

// Open opens the directory for the operator already signed in.
func (f *AdminFlow) Open(ctx context.Context) (*AccessDirectory, error) {
	current := f.sessions.Snapshot().Identity
	if current == nil {
		return nil, domainauth.ErrAccessDenied
	}

	ok, err := f.roles.HasRole(ctx, current.ID, domainauth.RoleAdmin)
	if err != nil || !ok {
		f.logger.InfoContext(ctx, "admin access denied", "user_id", current.ID, "error", err)
		return nil, domainauth.ErrAccessDenied
	}

	dir := newAccessDirectory(accessDirectoryOptions{
		Store:    f.store,
		Roles:    f.roles,
		Sessions: f.sessions,
		Logger:   f.logger,
	})
	if err := dir.Refresh(ctx); err != nil {
		dir.Close()
		return nil, err
	}
	f.logger.InfoContext(ctx, "admin directory opened", "user_id", current.ID)
	return dir, nil
}
