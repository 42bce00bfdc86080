package httpx

import (
	"context"
	"log/slog"
	"net/http"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/service"
)

// AdminFlowCookie carries the flow id of an open access directory.
const AdminFlowCookie = "cse_admin_flow"

// AdminOpener is the admin entry point.
type AdminOpener interface {
	Login(ctx context.Context, email, password string) (*service.AccessDirectory, error)
	Open(ctx context.Context) (*service.AccessDirectory, error)
}

// AdminHandlers serves the admin login and the access-level directory.
type AdminHandlers struct {
	Flow         AdminOpener
	Sessions     *AdminSessions
	Render       *Renderer
	CookieDomain string
	CookieSecure bool
	Logger       *slog.Logger
}

// userRow is one directory line as shown to the operator.
type userRow struct {
	ID          string                 `json:"id"`
	Email       string                 `json:"email"`
	DisplayName *string                `json:"display_name,omitempty"`
	AccessLevel domainauth.AccessLevel `json:"access_level"`
}

// Name returns the display name or an empty string.
func (u userRow) Name() string {
	if u.DisplayName == nil {
		return ""
	}
	return *u.DisplayName
}

var accessLevels = []domainauth.AccessLevel{domainauth.AccessFull, domainauth.AccessLimited, domainauth.AccessNone}

func rows(dir *service.AccessDirectory) []userRow {
	ids := dir.ListManagedIdentities()
	out := make([]userRow, 0, len(ids))
	for _, m := range ids {
		out = append(out, userRow{ID: m.ID, Email: m.Email, DisplayName: m.DisplayName, AccessLevel: dir.GetAccessLevel(m.ID)})
	}
	return out
}

func (h *AdminHandlers) setFlowCookie(w http.ResponseWriter, id string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     AdminFlowCookie,
		Value:    id,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func flowID(r *http.Request) string {
	c, err := r.Cookie(AdminFlowCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// directory returns the open directory for the request's flow cookie.
func (h *AdminHandlers) directory(r *http.Request) (*service.AccessDirectory, bool) {
	return h.Sessions.Get(flowID(r))
}

func (h *AdminHandlers) start(w http.ResponseWriter, r *http.Request, dir *service.AccessDirectory) {
	if old := flowID(r); old != "" {
		h.Sessions.Discard(old)
	}
	h.setFlowCookie(w, h.Sessions.Put(dir), 0)
	if IsBrowserRequest(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": rows(dir)})
}

// Login handles POST /login/admin and POST /api/admin/login: sign in, confirm the admin
// role, then open the directory.
func (h *AdminHandlers) Login(w http.ResponseWriter, r *http.Request) {
	c, ok := readCredentials(w, r)
	if !ok {
		return
	}
	dir, err := h.Flow.Login(r.Context(), c.Email, c.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.start(w, r, dir)
}

// Open handles POST /api/admin/open for an operator who is already signed in.
func (h *AdminHandlers) Open(w http.ResponseWriter, r *http.Request) {
	dir, err := h.Flow.Open(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.start(w, r, dir)
}

func (h *AdminHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	c := classify(err)
	if !IsBrowserRequest(r) {
		writeClassified(w, err)
		return
	}
	title := "Admin Login Failed: "
	if c.Code == "access_denied" {
		title = ""
	}
	h.Render.Render(w, r, c.Status, viewLogin, PageData{Title: "Sign in", Error: title + c.Message})
}

// Page handles GET /admin.
func (h *AdminHandlers) Page(w http.ResponseWriter, r *http.Request) {
	dir, ok := h.directory(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.Render.Render(w, r, http.StatusOK, viewAdmin, PageData{
		Title:    "User access",
		Current:  "/admin",
		Identity: IdentityFromContext(r.Context()),
		Nav:      ConsolePages,
		Users:    rows(dir),
		Levels:   accessLevels,
		Notice:   r.URL.Query().Get("notice"),
	})
}

// Users handles GET /api/admin/users.
func (h *AdminHandlers) Users(w http.ResponseWriter, r *http.Request) {
	dir, ok := h.directory(r)
	if !ok {
		writeClassified(w, domainauth.ErrAccessDenied)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": rows(dir)})
}

type setAccessRequest struct {
	AccessLevel string `json:"access_level"`
}

// SetAccess handles PUT /api/admin/users/{id}/access and the POST /admin/access form.
func (h *AdminHandlers) SetAccess(w http.ResponseWriter, r *http.Request) {
	dir, ok := h.directory(r)
	if !ok {
		if IsBrowserRequest(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		writeClassified(w, domainauth.ErrAccessDenied)
		return
	}

	var userID, raw string
	if IsBrowserRequest(r) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		userID, raw = r.PostFormValue("user_id"), r.PostFormValue("access_level")
	} else {
		var req setAccessRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		userID, raw = r.PathValue("id"), req.AccessLevel
	}

	level, err := domainauth.ParseAccessLevel(raw)
	if err != nil || userID == "" {
		if err == nil {
			err = errMissingUserID
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
		return
	}

	if err := dir.SetAccessLevel(r.Context(), userID, level); err != nil {
		if IsBrowserRequest(r) {
			c := classify(err)
			h.Render.Render(w, r, c.Status, viewAdmin, PageData{
				Title:    "User access",
				Current:  "/admin",
				Identity: IdentityFromContext(r.Context()),
				Nav:      ConsolePages,
				Users:    rows(dir),
				Levels:   accessLevels,
				Error:    "Update failed: " + c.Message,
			})
			return
		}
		writeClassified(w, err)
		return
	}

	if IsBrowserRequest(r) {
		http.Redirect(w, r, "/admin?notice=Access+updated", http.StatusSeeOther)
		return
	}
	WriteJSON(w, http.StatusOK, userRow{ID: userID, AccessLevel: dir.GetAccessLevel(userID)})
}

// Exit handles POST /admin/exit and POST /api/admin/exit. It discards the directory; the
// operator stays signed in.
func (h *AdminHandlers) Exit(w http.ResponseWriter, r *http.Request) {
	if id := flowID(r); id != "" {
		h.Sessions.Discard(id)
	}
	h.setFlowCookie(w, "", -1)
	if IsBrowserRequest(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
