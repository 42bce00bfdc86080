package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: identity provider, token persistence and role check configuration
//   - database.go: Postgres and Redis connection configuration
//   - http.go: HTTP server configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Access store configuration
	Store StoreConfig

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Role check retry policy
	RoleCheck RoleCheckConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Auth.Sanitize()
	c.RoleCheck.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// Validate reports configuration that cannot run: missing mode-specific settings and
// unsafe cookie domains. Call it after Sanitize.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Auth.Mode == AuthModeSupabase || c.Store.Mode == StoreModeSupabase {
		errs = append(errs, c.Auth.Supabase.validate())
	}

	switch c.Auth.Mode {
	case AuthModeOIDC:
		if c.Auth.OIDC.DiscoveryURL == "" || c.Auth.OIDC.ClientID == "" {
			errs = append(errs, errors.New("AUTH_MODE=oidc requires OIDC_DISCOVERY_URL and OIDC_CLIENT_ID"))
		}
	case AuthModeMock:
		if !c.IsDev {
			errs = append(errs, errors.New("AUTH_MODE=mock is only allowed in development"))
		}
		if c.Auth.DevAuth.PasswordHash == "" {
			errs = append(errs, errors.New("AUTH_MODE=mock requires DEV_AUTH_PASSWORD_HASH"))
		}
	}

	if c.Store.Mode == StoreModeMock && !c.IsDev {
		errs = append(errs, errors.New("STORE_MODE=mock is only allowed in development"))
	}

	if err := c.HTTP.validateCookieDomain(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether any component needs a database connection.
func (c *AppConfig) UsesPostgres() bool {
	return c.Store.Mode == StoreModePostgres
}

// NeedsTokenStore reports whether the identity provider persists tokens in Redis.
func (c *AppConfig) NeedsTokenStore() bool {
	return c.Auth.Mode == AuthModeSupabase || c.Auth.Mode == AuthModeOIDC
}

// StoreMode selects the backend holding profiles, role assignments and access levels.
type StoreMode string

const (
	// StoreModeSupabase uses the Supabase REST API (PostgREST tables and RPC functions).
	StoreModeSupabase StoreMode = "supabase"
	// StoreModePostgres talks to Postgres directly with the embedded schema.
	StoreModePostgres StoreMode = "postgres"
	// StoreModeMock keeps everything in memory (for development only).
	StoreModeMock StoreMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreMode.
func (m *StoreMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch StoreMode(v) {
	case StoreModeSupabase, StoreModePostgres, StoreModeMock:
		*m = StoreMode(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreMode: %q (valid options: supabase, postgres, mock)", v)
	}
}

// StoreConfig groups access store configuration.
type StoreConfig struct {
	Mode StoreMode `env:"STORE_MODE" envDefault:"supabase"`

	// MockProfiles seeds the in-memory store used with STORE_MODE=mock:
	// "id=email|Full Name,id=email".
	MockProfiles string `env:"STORE_MOCK_PROFILES"`
}
