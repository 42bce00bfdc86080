package httpx

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	domainauth "github.com/target/cse-console/internal/domain/auth"
)

//go:embed views/*.html
var viewsFS embed.FS

// View names.
const (
	viewLoading  = "loading"
	viewPage     = "page"
	viewLogin    = "login"
	viewAdmin    = "admin"
	viewDBStatus = "db_status"
	viewNotFound = "not_found"
)

// PageData is the data every view receives. Views read only the fields they need.
type PageData struct {
	Title    string
	Current  string
	Identity *domainauth.Identity
	Nav      []Page
	Notice   string
	Error    string
	// CSRF is rendered into every form.
	CSRF string

	// login
	Email string
	// admin
	Users  []userRow
	Levels []domainauth.AccessLevel
	// db_status
	DB dbStatus
}

// Renderer renders the embedded HTML views.
type Renderer struct {
	views  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses every view against the shared base layout.
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Renderer{views: make(map[string]*template.Template), logger: logger}
	for _, name := range []string{viewLoading, viewPage, viewLogin, viewAdmin, viewDBStatus, viewNotFound} {
		t, err := template.ParseFS(viewsFS, "views/base.html", "views/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", name, err)
		}
		r.views[name] = t
	}
	return r, nil
}

// Render writes view with the given status and r's CSRF token. Rendering happens into a
// buffer so a template failure still produces a clean 500.
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, view string, data PageData) {
	data.CSRF = CSRFToken(r)
	t, ok := rn.views[view]
	if !ok {
		rn.logger.Error("unknown view", "view", view)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		rn.logger.Error("render view", "view", view, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Placeholder returns the handler RequireSession serves while the session resolves.
func (rn *Renderer) Placeholder() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rn.Render(w, r, http.StatusOK, viewLoading, PageData{Title: "Loading"})
	})
}
