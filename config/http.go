package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to. The console serves one operator,
	// so it binds to loopback by default.
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`

	// CookieDomain is the domain for the admin flow cookie.
	// Leave empty to use the request host.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CookieSecure marks cookies Secure; enable behind TLS.
	CookieSecure bool `env:"APP_COOKIE_SECURE" envDefault:"false"`

	// PredictURL is the external churn prediction service /predict redirects to.
	PredictURL string `env:"PREDICT_URL" envDefault:"http://localhost:8501/"`

	// LoadingRefresh is the Refresh interval of the placeholder page shown while the
	// session is still resolving.
	LoadingRefresh time.Duration `env:"HTTP_LOADING_REFRESH" envDefault:"1s"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.CookieDomain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h.CookieDomain), "."))
	if h.LoadingRefresh < time.Second {
		h.LoadingRefresh = time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

// validateCookieDomain rejects domains such as "com" or "github.io" that would let the
// browser share the cookie with unrelated sites.
func (h *HTTPConfig) validateCookieDomain() error {
	if h.CookieDomain == "" || h.CookieDomain == "localhost" {
		return nil
	}
	suffix, _ := publicsuffix.PublicSuffix(h.CookieDomain)
	if suffix == h.CookieDomain {
		return fmt.Errorf("APP_COOKIE_DOMAIN %q: %w", h.CookieDomain, errCookieDomainSuffix)
	}
	return nil
}
