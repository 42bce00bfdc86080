package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/cse-console/config"
	"github.com/target/cse-console/internal/adapters/authroles"
	"github.com/target/cse-console/internal/adapters/memstore"
	"github.com/target/cse-console/internal/adapters/supabase"
	"github.com/target/cse-console/internal/data"
	"github.com/target/cse-console/internal/ports"
	"github.com/target/cse-console/internal/service"
)

// Backend is the role lookup and access store pair for one store mode.
type Backend struct {
	Authorizer ports.Authorizer
	Store      ports.AccessStore
}

// BackendConfig contains what BuildBackend needs.
type BackendConfig struct {
	Config   *config.AppConfig
	DB       *sql.DB
	Supabase *supabase.Client
	// Sessions names the acting identity for Postgres writes.
	Sessions service.SessionReader
	Logger   *slog.Logger
}

// BuildBackend creates the authorizer and access store for the configured store mode.
func BuildBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Config.Store.Mode {
	case config.StoreModeSupabase:
		if cfg.Supabase == nil {
			return Backend{}, errors.New("STORE_MODE=supabase requires a supabase client")
		}
		return Backend{
			Authorizer: supabase.NewAuthorizer(cfg.Supabase),
			Store:      supabase.NewAccessStore(cfg.Supabase),
		}, nil

	case config.StoreModePostgres:
		if cfg.DB == nil {
			return Backend{}, errors.New("STORE_MODE=postgres requires a database connection")
		}
		return Backend{
			Authorizer: data.NewRoleRepo(cfg.DB),
			Store:      data.NewAccessRepo(cfg.DB, callerFromSessions(cfg.Sessions)),
		}, nil

	case config.StoreModeMock:
		return buildMockBackend(cfg)

	default:
		return Backend{}, fmt.Errorf("unsupported store mode %q", cfg.Config.Store.Mode)
	}
}

// callerFromSessions reports the signed-in identity as the acting user for store writes.
func callerFromSessions(sessions service.SessionReader) data.CallerFunc {
	return func(context.Context) string {
		if id := sessions.Snapshot().Identity; id != nil {
			return id.ID
		}
		return ""
	}
}

func buildMockBackend(cfg BackendConfig) (Backend, error) {
	profiles, err := memstore.ParseProfiles(cfg.Config.Store.MockProfiles)
	if err != nil {
		return Backend{}, fmt.Errorf("parse STORE_MOCK_PROFILES: %w", err)
	}
	assignments, err := authroles.ParseAssignments(cfg.Config.Auth.RoleAssignments)
	if err != nil {
		return Backend{}, fmt.Errorf("parse AUTH_ROLE_ASSIGNMENTS: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Warn("in-memory access store enabled",
			"profiles", len(profiles),
			"role_assignments", len(assignments),
		)
	}
	return Backend{
		Authorizer: authroles.NewStaticAuthorizer(assignments),
		Store:      memstore.New(profiles...),
	}, nil
}
