package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	domainauth "github.com/target/cse-console/internal/domain/auth"
)

// Gateway is the sign-in surface the auth handlers use.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (domainauth.Identity, error)
	SignOut(ctx context.Context) error
	Current() domainauth.Session
}

// AuthHandlers provides HTTP handlers for sign-in, sign-out and session status.
type AuthHandlers struct {
	Gateway Gateway
	Render  *Renderer
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// readCredentials accepts a JSON body on API routes and form values otherwise.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	if !IsBrowserRequest(r) || strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var c credentials
		if !DecodeJSON(w, r, &c) {
			return credentials{}, false
		}
		return c, true
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return credentials{}, false
	}
	return credentials{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}, true
}

// LoginPage renders the sign-in page. A signed-in operator is sent home.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.Gateway.Current().Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.Render.Render(w, r, http.StatusOK, viewLogin, PageData{Title: "Sign in"})
}

// Login handles POST /login and POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	c, ok := readCredentials(w, r)
	if !ok {
		return
	}

	identity, err := h.Gateway.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		if IsBrowserRequest(r) {
			h.Render.Render(w, r, classify(err).Status, viewLogin, PageData{
				Title: "Sign in",
				Email: c.Email,
				Error: "Login Failed: " + classify(err).Message,
			})
			return
		}
		writeClassified(w, err)
		return
	}

	if IsBrowserRequest(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"identity": identity, "message": "Welcome back!"})
}

// Logout handles POST /logout and POST /api/auth/logout. The local session ends even
// when the remote revoke fails; that case is reported as a warning.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.Gateway.SignOut(r.Context())
	if err != nil && !errors.Is(err, domainauth.ErrNetwork) {
		h.logger().ErrorContext(r.Context(), "sign out failed", "error", err)
	}

	if IsBrowserRequest(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	body := map[string]any{"signed_out": true}
	if err != nil {
		body["warning"] = "Signed out locally; the identity service could not be reached."
	}
	WriteJSON(w, http.StatusOK, body)
}

// Status handles GET /api/auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.Gateway.Current())
}
