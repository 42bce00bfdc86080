package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	apperrors "github.com/target/cse-console/internal/errors"
	"github.com/target/cse-console/internal/ports"
	"golang.org/x/sync/errgroup"
)

// ErrDirectoryClosed is returned by directory operations after Close.
var ErrDirectoryClosed = errors.New("access directory closed")

// RoleChecker is the role lookup the directory re-runs before every write.
type RoleChecker interface {
	HasRole(ctx context.Context, identityID string, role domainauth.Role) (bool, error)
}

type accessDirectoryOptions struct {
	Store    ports.AccessStore
	Roles    RoleChecker
	Sessions SessionReader
	Logger   *slog.Logger
}

// AccessDirectory is the admin view over profiles and their access levels.
// It is only handed out by AdminFlow once the operator was confirmed as admin,
// and every write re-checks that against the current session.
type AccessDirectory struct {
	store    ports.AccessStore
	roles    RoleChecker
	sessions SessionReader
	logger   *slog.Logger

	mu       sync.RWMutex
	profiles []domainauth.ManagedIdentity
	levels   domainauth.AccessMap
	closed   bool
}

func newAccessDirectory(opts accessDirectoryOptions) *AccessDirectory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessDirectory{
		store:    opts.Store,
		roles:    opts.Roles,
		sessions: opts.Sessions,
		logger:   logger,
		levels:   make(domainauth.AccessMap),
	}
}

// Refresh reloads profiles and access rows. Both reads run concurrently and the cache is
// replaced only when both succeed.
func (d *AccessDirectory) Refresh(ctx context.Context) error {
	if d.isClosed() {
		return ErrDirectoryClosed
	}

	var (
		profiles []domainauth.ManagedIdentity
		levels   domainauth.AccessMap
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = d.store.ListProfiles(gctx)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		levels, err = d.store.ListAccessLevels(gctx)
		if err != nil {
			return fmt.Errorf("list access levels: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		d.logger.WarnContext(ctx, "access directory load failed", "error", err)
		return fmt.Errorf("%w: %w", domainauth.ErrNetwork, err)
	}

	sorted := append([]domainauth.ManagedIdentity(nil), profiles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Email < sorted[j].Email })
	if levels == nil {
		levels = make(domainauth.AccessMap)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDirectoryClosed
	}
	d.profiles = sorted
	d.levels = levels.Clone()
	return nil
}

// ListManagedIdentities returns the loaded profiles ordered by email ascending.
func (d *AccessDirectory) ListManagedIdentities() []domainauth.ManagedIdentity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]domainauth.ManagedIdentity(nil), d.profiles...)
}

// GetAccessLevel returns the level for id. Identities without a record are AccessNone.
func (d *AccessDirectory) GetAccessLevel(id string) domainauth.AccessLevel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.levels.Get(id)
}

// SetAccessLevel persists level for id after confirming the current operator is still admin.
// A failed or negative role check yields domainauth.ErrWriteForbidden and leaves the view
// untouched, and so does a refusal from the store itself (an apperrors forbidden error);
// any other store failure yields domainauth.ErrWriteTransport. On success the view shows
// the new level by the time SetAccessLevel returns.
func (d *AccessDirectory) SetAccessLevel(ctx context.Context, id string, level domainauth.AccessLevel) error {
	if id == "" {
		return errors.New("identity id is required")
	}
	if !level.Valid() {
		return fmt.Errorf("invalid access level: %q", level)
	}
	if d.isClosed() {
		return ErrDirectoryClosed
	}

	if err := d.verifyAdmin(ctx); err != nil {
		return err
	}

	if err := d.store.UpsertAccessLevel(ctx, id, level); err != nil {
		d.logger.WarnContext(ctx, "access level write failed", "user_id", id, "level", level, "error", err)
		if apperrors.IsForbidden(err) {
			return fmt.Errorf("%w: %w", domainauth.ErrWriteForbidden, err)
		}
		return fmt.Errorf("%w: %w", domainauth.ErrWriteTransport, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDirectoryClosed
	}
	d.levels[id] = level
	d.logger.InfoContext(ctx, "access level updated", "user_id", id, "level", level)
	return nil
}

// Close discards the cached view. Later calls fail with ErrDirectoryClosed.
func (d *AccessDirectory) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.profiles = nil
	d.levels = nil
}

func (d *AccessDirectory) verifyAdmin(ctx context.Context) error {
	current := d.sessions.Snapshot().Identity
	if current == nil {
		return domainauth.ErrWriteForbidden
	}
	ok, err := d.roles.HasRole(ctx, current.ID, domainauth.RoleAdmin)
	if err != nil {
		d.logger.WarnContext(ctx, "admin re-check failed", "user_id", current.ID, "error", err)
		return fmt.Errorf("%w: %w", domainauth.ErrWriteForbidden, err)
	}
	if !ok {
		return domainauth.ErrWriteForbidden
	}
	return nil
}

func (d *AccessDirectory) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}
