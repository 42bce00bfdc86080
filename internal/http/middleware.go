package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/guard"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.ErrorContext(r.Context(), "panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionSource is the read side of the session store.
type SessionSource interface {
	Snapshot() domainauth.Session
}

// GuardOptions configures RequireSession.
type GuardOptions struct {
	Sessions SessionSource
	// Required is false for pages any visitor may see once the session has resolved.
	Required bool
	// Refresh is the Refresh header interval on the loading placeholder.
	Refresh time.Duration
	// Placeholder renders the loading page; nil writes plain text.
	Placeholder http.Handler
}

// RequireSession runs the route guard on every request. While the session is still
// resolving it serves a placeholder that reloads itself; a required page without an
// identity redirects to the login page; otherwise the session is put in the request
// context and next runs.
func RequireSession(opts GuardOptions) func(http.Handler) http.Handler {
	refresh := opts.Refresh
	if refresh < time.Second {
		refresh = time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := opts.Sessions.Snapshot()
			d := guard.Decide(opts.Required, s)
			switch d.Kind {
			case domainauth.DecisionShowLoadingPlaceholder:
				w.Header().Set("Cache-Control", "no-store")
				w.Header().Set("Refresh", strconv.Itoa(int(refresh/time.Second)))
				if opts.Placeholder != nil {
					opts.Placeholder.ServeHTTP(w, r)
					return
				}
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("Loading..."))
			case domainauth.DecisionRedirect:
				if !IsBrowserRequest(r) {
					WriteJSON(w, http.StatusUnauthorized, map[string]string{
						"error":    "authentication_required",
						"message":  "Sign in to continue",
						"location": d.Target,
					})
					return
				}
				http.Redirect(w, r, d.Target, http.StatusFound)
			default:
				next.ServeHTTP(w, r.WithContext(SetSessionInContext(r.Context(), s)))
			}
		})
	}
}

// browserRequestKey is an unexported context key type for browser request detection.
type browserRequestKey struct{}

// BrowserDetection returns a middleware that records whether the request comes from a
// browser, so handlers can choose between HTML and JSON responses.
func BrowserDetection() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), browserRequestKey{}, isBrowserRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsBrowserRequest returns true if the current request is from a browser.
func IsBrowserRequest(r *http.Request) bool {
	if val, ok := r.Context().Value(browserRequestKey{}).(bool); ok {
		return val
	}
	// Fallback to direct detection if middleware wasn't used
	return isBrowserRequest(r)
}

// isBrowserRequest determines if a request is from a browser based on:
// 1. Path prefix - API routes start with /api/
// 2. Accept header - browsers typically accept text/html.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		// No Accept header, assume browser for non-API routes
		return true
	}
	return strings.Contains(accept, "text/html")
}
