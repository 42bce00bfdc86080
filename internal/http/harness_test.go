package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	mocks "github.com/target/cse-console/internal/mocks/auth"
	"github.com/target/cse-console/internal/service"
	"github.com/target/cse-console/internal/session"
)

const (
	adminEmail = "admin@x.com"
	userEmail  = "user@x.com"
	password   = "goodpw"
	adminID    = "admin-1"
	userID     = "user-1"
)

type harness struct {
	provider *mocks.MockIdentityProvider
	sessions *session.Store
	store    *mocks.MemoryAccessStore
	authz    *mocks.StaticAuthorizer
	router   *Router
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHarness wires the real gateway, resolver and admin flow over in-memory doubles.
func newHarness(t *testing.T) *harness {
	t.Helper()
	provider := mocks.NewMockIdentityProvider(map[string]mocks.Account{
		adminEmail: {Password: password, Identity: domainauth.Identity{ID: adminID, Email: adminEmail}},
		userEmail:  {Password: password, Identity: domainauth.Identity{ID: userID, Email: userEmail}},
	})
	logger := discardLogger()
	sessions := session.New(provider, session.Options{Logger: logger})
	t.Cleanup(sessions.Close)
	require.NoError(t, sessions.Initialize(context.Background()))

	name := "Ada User"
	store := mocks.NewMemoryAccessStore(
		domainauth.ManagedIdentity{ID: userID, Email: userEmail, DisplayName: &name},
		domainauth.ManagedIdentity{ID: adminID, Email: adminEmail},
	)
	authz := &mocks.StaticAuthorizer{Roles: map[string][]domainauth.Role{adminID: {domainauth.RoleAdmin}}}

	gateway := service.NewAuthGateway(service.AuthGatewayOptions{Provider: provider, Sessions: sessions, Logger: logger})
	roles := service.NewRoleResolver(service.RoleResolverOptions{Authorizer: authz, Sessions: sessions, Retries: -1, Logger: logger})
	flow := service.NewAdminFlow(service.AdminFlowOptions{
		Gateway:  gateway,
		Roles:    roles,
		Store:    store,
		Sessions: sessions,
		Logger:   logger,
	})

	router, err := NewRouter(RouterServices{
		Sessions:   sessions,
		Gateway:    gateway,
		Admin:      flow,
		Store:      store,
		PredictURL: "http://localhost:8501/",
		Logger:     logger,
	})
	require.NoError(t, err)
	t.Cleanup(router.Close)

	return &harness{provider: provider, sessions: sessions, store: store, authz: authz, router: router}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

const formCSRFToken = "test-csrf-token"

// formRequest builds a browser form POST carrying a matching CSRF cookie and field.
func formRequest(target string, values url.Values) *http.Request {
	withToken := url.Values{CSRFFieldName: {formCSRFToken}}
	for k, v := range values {
		withToken[k] = v
	}
	req := bareFormRequest(target, withToken)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: formCSRFToken})
	return req
}

func bareFormRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	return req
}

func withCookies(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}
