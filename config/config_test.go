package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "OIDC")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("OIDC_CLIENT_ID", "console")
	t.Setenv("OIDC_CLIENT_SECRET", "super-secret")
	t.Setenv("OIDC_DISCOVERY_URL", "https://login.example.com/.well-known/openid-configuration")
	t.Setenv("OIDC_NAME_CLAIM", "given_name")
	t.Setenv("DEV_AUTH_PASSWORD_HASH", "$2a$10$hash")
	t.Setenv("AUTH_TOKEN_TTL", "24h")
	t.Setenv("AUTH_ROLE_ASSIGNMENTS", "u1=admin")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	expected := AuthConfig{
		Mode: AuthModeOIDC,
		Supabase: SupabaseConfig{
			URL:     "https://abc.supabase.co",
			AnonKey: "anon",
			Timeout: 10 * time.Second,
		},
		OIDC: OIDCConfig{
			ClientID:     "console",
			ClientSecret: "super-secret",
			Scope:        "openid email profile offline_access",
			DiscoveryURL: "https://login.example.com/.well-known/openid-configuration",
			EmailClaim:   "email",
			NameClaim:    "given_name",
		},
		DevAuth: DevAuthConfig{
			UserID:       "00000000-0000-4000-8000-000000000001",
			Email:        "admin@example.com",
			DisplayName:  "Dev Admin",
			PasswordHash: "$2a$10$hash",
		},
		Tokens: TokenConfig{
			Key:             "cse-console:token",
			TTL:             24 * time.Hour,
			RefreshInterval: time.Minute,
		},
		RoleAssignments: "u1=admin",
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
}

func TestAppConfig_ParseRejectsUnknownModes(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "auth mode", key: "AUTH_MODE", val: "ldap"},
		{name: "store mode", key: "STORE_MODE", val: "mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			var cfg AppConfig
			if err := env.Parse(&cfg); err == nil {
				t.Fatalf("expected parse error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Auth.Mode != AuthModeSupabase || cfg.Store.Mode != StoreModeSupabase {
		t.Errorf("default modes = %s/%s, want supabase/supabase", cfg.Auth.Mode, cfg.Store.Mode)
	}
	if cfg.HTTP.Addr != "127.0.0.1:8080" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.HTTP.PredictURL != "http://localhost:8501/" {
		t.Errorf("HTTP.PredictURL = %q", cfg.HTTP.PredictURL)
	}
	if cfg.RoleCheck.Retries != 1 || cfg.RoleCheck.Backoff != 200*time.Millisecond {
		t.Errorf("RoleCheck = %+v, want 1 retry / 200ms", cfg.RoleCheck)
	}
	if !cfg.NeedsTokenStore() || cfg.UsesPostgres() {
		t.Error("supabase defaults need a token store and no database")
	}
}

func TestRoleCheckConfig_Sanitize(t *testing.T) {
	tests := []struct {
		name        string
		in          RoleCheckConfig
		want        RoleCheckConfig
		wantResolve int
	}{
		{
			name:        "defaults kept",
			in:          RoleCheckConfig{Retries: 1, Backoff: 200 * time.Millisecond},
			want:        RoleCheckConfig{Retries: 1, Backoff: 200 * time.Millisecond},
			wantResolve: 1,
		},
		{
			name:        "negative retries and backoff",
			in:          RoleCheckConfig{Retries: -3, Backoff: -time.Second},
			want:        RoleCheckConfig{Retries: 0, Backoff: 200 * time.Millisecond},
			wantResolve: -1,
		},
		{
			name:        "retries clamped",
			in:          RoleCheckConfig{Retries: 50, Backoff: time.Second},
			want:        RoleCheckConfig{Retries: 5, Backoff: time.Second},
			wantResolve: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Sanitize()
			if got != tt.want {
				t.Errorf("Sanitize() = %+v, want %+v", got, tt.want)
			}
			if got.ResolverRetries() != tt.wantResolve {
				t.Errorf("ResolverRetries() = %d, want %d", got.ResolverRetries(), tt.wantResolve)
			}
		})
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	h := HTTPConfig{CookieDomain: " .Console.Example.COM ", LoadingRefresh: 0}
	h.Sanitize()

	if h.CookieDomain != "console.example.com" {
		t.Errorf("CookieDomain = %q", h.CookieDomain)
	}
	if h.LoadingRefresh != time.Second {
		t.Errorf("LoadingRefresh = %v, want 1s", h.LoadingRefresh)
	}
	if h.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", h.ShutdownTimeout)
	}
}

func TestHTTPConfig_ValidateCookieDomain(t *testing.T) {
	tests := []struct {
		domain  string
		wantErr bool
	}{
		{domain: "", wantErr: false},
		{domain: "localhost", wantErr: false},
		{domain: "console.example.com", wantErr: false},
		{domain: "example.co.uk", wantErr: false},
		{domain: "com", wantErr: true},
		{domain: "co.uk", wantErr: true},
		{domain: "github.io", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			h := HTTPConfig{CookieDomain: tt.domain}
			err := h.validateCookieDomain()
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateCookieDomain(%q) error = %v, wantErr %v", tt.domain, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errCookieDomainSuffix) {
				t.Errorf("error should wrap errCookieDomainSuffix: %v", err)
			}
		})
	}
}

func TestAppConfig_Validate(t *testing.T) {
	supabase := SupabaseConfig{URL: "https://abc.supabase.co", AnonKey: "anon"}

	tests := []struct {
		name    string
		cfg     AppConfig
		wantErr string
	}{
		{
			name: "supabase complete",
			cfg: AppConfig{
				Auth:  AuthConfig{Mode: AuthModeSupabase, Supabase: supabase},
				Store: StoreConfig{Mode: StoreModeSupabase},
			},
		},
		{
			name: "supabase missing key",
			cfg: AppConfig{
				Auth:  AuthConfig{Mode: AuthModeSupabase, Supabase: SupabaseConfig{URL: supabase.URL}},
				Store: StoreConfig{Mode: StoreModeSupabase},
			},
			wantErr: "SUPABASE_ANON_KEY",
		},
		{
			name: "supabase relative url",
			cfg: AppConfig{
				Auth:  AuthConfig{Mode: AuthModeSupabase, Supabase: SupabaseConfig{URL: "abc", AnonKey: "k"}},
				Store: StoreConfig{Mode: StoreModePostgres},
			},
			wantErr: "absolute URL",
		},
		{
			name: "oidc missing discovery",
			cfg: AppConfig{
				Auth:  AuthConfig{Mode: AuthModeOIDC, OIDC: OIDCConfig{ClientID: "c"}},
				Store: StoreConfig{Mode: StoreModePostgres},
			},
			wantErr: "OIDC_DISCOVERY_URL",
		},
		{
			name: "mock outside dev",
			cfg: AppConfig{
				Auth:  AuthConfig{Mode: AuthModeMock, DevAuth: DevAuthConfig{PasswordHash: "h"}},
				Store: StoreConfig{Mode: StoreModeMock},
			},
			wantErr: "only allowed in development",
		},
		{
			name: "mock in dev",
			cfg: AppConfig{
				IsDev: true,
				Auth:  AuthConfig{Mode: AuthModeMock, DevAuth: DevAuthConfig{PasswordHash: "h"}},
				Store: StoreConfig{Mode: StoreModeMock},
			},
		},
		{
			name: "public suffix cookie domain",
			cfg: AppConfig{
				Auth:  AuthConfig{Mode: AuthModeSupabase, Supabase: supabase},
				Store: StoreConfig{Mode: StoreModeSupabase},
				HTTP:  HTTPConfig{CookieDomain: "com"},
			},
			wantErr: "public suffix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestAppConfig_DetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Error("NODE_ENV=development should enable dev mode")
	}
}
