package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AuthMode represents the identity provider the console signs in against.
type AuthMode string

const (
	// AuthModeSupabase uses Supabase GoTrue password sign-in.
	AuthModeSupabase AuthMode = "supabase"
	// AuthModeOIDC uses an OIDC provider's resource owner password grant.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses a single local account (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch AuthMode(v) {
	case AuthModeSupabase, AuthModeOIDC, AuthModeMock:
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: supabase, oidc, mock)", v)
	}
}

// SupabaseConfig points at the Supabase project shared by auth and the access store.
type SupabaseConfig struct {
	URL     string        `env:"URL"`
	AnonKey string        `env:"ANON_KEY"`
	Timeout time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

func (s SupabaseConfig) validate() error {
	if s.URL == "" || s.AnonKey == "" {
		return errors.New("supabase mode requires SUPABASE_URL and SUPABASE_ANON_KEY")
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SUPABASE_URL %q is not an absolute URL", s.URL)
	}
	return nil
}

// OIDCConfig contains OIDC provider configuration.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid email profile offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// EmailClaim and NameClaim are JMESPath expressions evaluated against the ID token claims.
	EmailClaim string `env:"EMAIL_CLAIM" envDefault:"email"`
	NameClaim  string `env:"NAME_CLAIM"  envDefault:"name || preferred_username"`
}

// DevAuthConfig controls the single local account used when AUTH_MODE=mock.
type DevAuthConfig struct {
	UserID      string `env:"USER_ID"       envDefault:"00000000-0000-4000-8000-000000000001"`
	Email       string `env:"EMAIL"         envDefault:"admin@example.com"`
	DisplayName string `env:"DISPLAY_NAME"  envDefault:"Dev Admin"`
	// PasswordHash is a bcrypt hash; generate one with `console-admin hash-password`.
	PasswordHash string `env:"PASSWORD_HASH"`
}

// TokenConfig controls persistence of the provider session in Redis.
type TokenConfig struct {
	Key             string        `env:"KEY"              envDefault:"cse-console:token"`
	TTL             time.Duration `env:"TTL"              envDefault:"168h"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"1m"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"supabase"`

	Supabase SupabaseConfig `envPrefix:"SUPABASE_"`
	OIDC     OIDCConfig     `envPrefix:"OIDC_"`
	DevAuth  DevAuthConfig  `envPrefix:"DEV_AUTH_"`
	Tokens   TokenConfig    `envPrefix:"AUTH_TOKEN_"`

	// RoleAssignments feeds the static authorizer used with STORE_MODE=mock:
	// "user-id=admin|user,other-id=user".
	RoleAssignments string `env:"AUTH_ROLE_ASSIGNMENTS"`
}

// Sanitize trims URLs and applies token defaults.
func (a *AuthConfig) Sanitize() {
	a.Supabase.URL = strings.TrimRight(strings.TrimSpace(a.Supabase.URL), "/")
	if a.Supabase.Timeout <= 0 {
		a.Supabase.Timeout = 10 * time.Second
	}
	a.OIDC.DiscoveryURL = strings.TrimSpace(a.OIDC.DiscoveryURL)
	if a.Tokens.TTL <= 0 {
		a.Tokens.TTL = 7 * 24 * time.Hour
	}
	if a.Tokens.RefreshInterval < 10*time.Second {
		a.Tokens.RefreshInterval = 10 * time.Second
	}
}

const (
	maxRoleCheckRetries     = 5
	defaultRoleCheckBackoff = 200 * time.Millisecond
)

// RoleCheckConfig is the retry policy for the remote has_role function.
type RoleCheckConfig struct {
	Retries int           `env:"ROLE_CHECK_RETRIES" envDefault:"1"`
	Backoff time.Duration `env:"ROLE_CHECK_BACKOFF" envDefault:"200ms"`
}

// Sanitize clamps retries to [0,5] and replaces a non-positive backoff with the default.
func (r *RoleCheckConfig) Sanitize() {
	if r.Retries < 0 {
		r.Retries = 0
	}
	if r.Retries > maxRoleCheckRetries {
		r.Retries = maxRoleCheckRetries
	}
	if r.Backoff <= 0 {
		r.Backoff = defaultRoleCheckBackoff
	}
}

// ResolverRetries converts Retries into the resolver's convention, where zero means
// the default and a negative value disables retries.
func (r RoleCheckConfig) ResolverRetries() int {
	if r.Retries == 0 {
		return -1
	}
	return r.Retries
}

var errCookieDomainSuffix = errors.New("cookie domain is a public suffix")
