package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/session"
)

// ConsoleSessions is the session store as the router uses it.
type ConsoleSessions interface {
	Snapshot() domainauth.Session
	Subscribe(fn session.Listener) func()
}

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Sessions ConsoleSessions
	Gateway  Gateway
	Admin    AdminOpener
	// Store backs /db-status (optional).
	Store Pinger

	CookieDomain   string
	CookieSecure   bool
	PredictURL     string
	LoadingRefresh time.Duration
	Logger         *slog.Logger
}

// Router is the console's HTTP handler. Close releases the admin session registry.
type Router struct {
	http.Handler
	Admin *AdminSessions
}

// Close unsubscribes the admin registry from the session store.
func (r *Router) Close() {
	r.Admin.Close()
}

// NewRouter creates the console router with browser detection and CSRF protection applied.
func NewRouter(services RouterServices) (*Router, error) {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	render, err := NewRenderer(logger)
	if err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}

	adminSessions := NewAdminSessions(services.Sessions, logger)
	authHandlers := &AuthHandlers{Gateway: services.Gateway, Render: render, Logger: logger}
	adminHandlers := &AdminHandlers{
		Flow:         services.Admin,
		Sessions:     adminSessions,
		Render:       render,
		CookieDomain: services.CookieDomain,
		CookieSecure: services.CookieSecure,
		Logger:       logger,
	}
	pageHandlers := &PageHandlers{Render: render, PredictURL: services.PredictURL, Store: services.Store}

	protect := RequireSession(GuardOptions{
		Sessions:    services.Sessions,
		Required:    true,
		Refresh:     services.LoadingRefresh,
		Placeholder: render.Placeholder(),
	})

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))

	registerAuthRoutes(mux, authHandlers)
	registerAdminRoutes(mux, adminHandlers, protect)
	registerPageRoutes(mux, pageHandlers, protect)

	csrf := CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain, CookieSecure: services.CookieSecure})
	return &Router{Handler: BrowserDetection()(csrf(mux)), Admin: adminSessions}, nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)

	mux.HandleFunc("GET /api/auth/status", h.Status)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
}

func registerAdminRoutes(mux *http.ServeMux, h *AdminHandlers, protect func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /login/admin", h.Login)
	mux.Handle("GET /admin", protect(http.HandlerFunc(h.Page)))
	mux.Handle("POST /admin/access", protect(http.HandlerFunc(h.SetAccess)))
	mux.HandleFunc("POST /admin/exit", h.Exit)

	mux.HandleFunc("POST /api/admin/login", h.Login)
	mux.Handle("POST /api/admin/open", protect(http.HandlerFunc(h.Open)))
	mux.Handle("GET /api/admin/users", protect(http.HandlerFunc(h.Users)))
	mux.Handle("PUT /api/admin/users/{id}/access", protect(http.HandlerFunc(h.SetAccess)))
	mux.HandleFunc("POST /api/admin/exit", h.Exit)
}

func registerPageRoutes(mux *http.ServeMux, h *PageHandlers, protect func(http.Handler) http.Handler) {
	for _, p := range ConsolePages {
		switch p.Path {
		case "/":
			mux.Handle("GET /{$}", protect(h.Section(p)))
		case "/predict":
			mux.Handle("GET /predict", protect(http.HandlerFunc(h.Predict)))
		case "/db-status":
			mux.Handle("GET /db-status", protect(http.HandlerFunc(h.DBStatus)))
		default:
			mux.Handle("GET "+p.Path, protect(h.Section(p)))
		}
	}
	mux.Handle("GET /api/db-status", protect(http.HandlerFunc(h.DBStatus)))
	// Unknown paths: signed-out visitors go to the login page, signed-in operators get a 404.
	mux.Handle("/", protect(http.HandlerFunc(h.NotFound)))
}
