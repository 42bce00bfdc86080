package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/cse-console/internal/ports"
)

const testAnonKey = "anon-key"

type fakeUser struct {
	id       string
	email    string
	password string
	name     string
	roles    []string
}

// fakeSupabase serves the GoTrue and PostgREST endpoints the adapters use.
type fakeSupabase struct {
	srv *httptest.Server

	mu        sync.Mutex
	users     []fakeUser
	access    map[string]string // bearer token -> user id
	refresh   map[string]string // refresh token -> user id
	levels    map[string]string
	issued    int
	logouts   int
	lastQuery map[string]string
	writeErr  int
	down      bool
}

func newFakeSupabase(t *testing.T) *fakeSupabase {
	t.Helper()
	f := &fakeSupabase{
		users: []fakeUser{
			{id: "admin-1", email: "admin@x.com", password: "goodpw", name: "Ada Admin", roles: []string{"admin", "user"}},
			{id: "user-1", email: "user@x.com", password: "goodpw", roles: []string{"user"}},
		},
		access:    map[string]string{},
		refresh:   map[string]string{},
		levels:    map[string]string{"user-1": "limited", "ghost": "superuser"},
		lastQuery: map[string]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", f.handleToken)
	mux.HandleFunc("/auth/v1/user", f.handleUser)
	mux.HandleFunc("/auth/v1/logout", f.handleLogout)
	mux.HandleFunc("/rest/v1/rpc/has_role", f.handleHasRole)
	mux.HandleFunc("/rest/v1/rpc/set_user_access", f.handleSetAccess)
	mux.HandleFunc("/rest/v1/profiles", f.handleProfiles)
	mux.HandleFunc("/rest/v1/user_access", f.handleUserAccess)
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		down := f.down
		f.mu.Unlock()
		if down {
			reply(w, http.StatusServiceUnavailable, map[string]string{"message": "upstream unavailable"})
			return
		}
		if r.Header.Get("apikey") != testAnonKey {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "No API key found in request"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSupabase) newClient(t *testing.T, tokens ports.TokenStore) *Client {
	t.Helper()
	c, err := NewClient(Config{URL: f.srv.URL, AnonKey: testAnonKey}, tokens)
	require.NoError(t, err)
	return c
}

func (f *fakeSupabase) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeSupabase) setWriteErr(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = status
}

func (f *fakeSupabase) level(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[id]
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeSupabase) caller(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	id, ok := f.access[token]
	return id, ok
}

func (f *fakeSupabase) user(id string) *fakeUser {
	for i := range f.users {
		if f.users[i].id == id {
			return &f.users[i]
		}
	}
	return nil
}

func (f *fakeSupabase) session(u *fakeUser) map[string]any {
	f.issued++
	at := fmt.Sprintf("at-%d", f.issued)
	rt := fmt.Sprintf("rt-%d", f.issued)
	f.access[at] = u.id
	f.refresh[rt] = u.id
	return map[string]any{
		"access_token":  at,
		"token_type":    "bearer",
		"expires_in":    3600,
		"expires_at":    time.Now().Add(time.Hour).Unix(),
		"refresh_token": rt,
		"user":          userJSON(u),
	}
}

func userJSON(u *fakeUser) map[string]any {
	meta := map[string]any{}
	if u.name != "" {
		meta["full_name"] = u.name
	}
	return map[string]any{"id": u.id, "email": u.email, "user_metadata": meta}
}

func (f *fakeSupabase) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch r.URL.Query().Get("grant_type") {
	case "password":
		for i := range f.users {
			u := &f.users[i]
			if u.email == body["email"] && u.password == body["password"] {
				reply(w, http.StatusOK, f.session(u))
				return
			}
		}
		reply(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		})
	case "refresh_token":
		id, ok := f.refresh[body["refresh_token"]]
		if !ok {
			reply(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token"})
			return
		}
		delete(f.refresh, body["refresh_token"])
		reply(w, http.StatusOK, f.session(f.user(id)))
	default:
		reply(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *fakeSupabase) handleUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.caller(r)
	if !ok {
		reply(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
		return
	}
	reply(w, http.StatusOK, userJSON(f.user(id)))
}

func (f *fakeSupabase) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if _, ok := f.access[token]; !ok {
		reply(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
		return
	}
	delete(f.access, token)
	f.logouts++
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeSupabase) handleHasRole(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.caller(r); !ok {
		reply(w, http.StatusUnauthorized, map[string]string{"code": "PGRST301", "message": "JWT expired"})
		return
	}
	var args struct {
		Role   string `json:"_role"`
		UserID string `json:"_user_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&args)
	u := f.user(args.UserID)
	result := false
	if u != nil {
		for _, role := range u.roles {
			if role == args.Role {
				result = true
			}
		}
	}
	reply(w, http.StatusOK, result)
}

func (f *fakeSupabase) handleSetAccess(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != 0 {
		reply(w, f.writeErr, map[string]string{"code": "42501", "message": "permission denied for function set_user_access"})
		return
	}
	var args struct {
		UserID string `json:"_user_id"`
		Level  string `json:"_access_level"`
	}
	_ = json.NewDecoder(r.Body).Decode(&args)
	f.levels[args.UserID] = args.Level
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeSupabase) handleProfiles(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery["profiles"] = r.URL.RawQuery
	rows := []map[string]any{
		{"id": "admin-1", "email": "admin@x.com", "full_name": "Ada Admin"},
		{"id": "user-1", "email": "user@x.com", "full_name": nil},
	}
	if r.URL.Query().Get("limit") == "1" {
		rows = rows[:1]
	}
	reply(w, http.StatusOK, rows)
}

func (f *fakeSupabase) handleUserAccess(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery["user_access"] = r.URL.RawQuery
	rows := make([]map[string]string, 0, len(f.levels))
	for id, level := range f.levels {
		rows = append(rows, map[string]string{"user_id": id, "access_level": level})
	}
	reply(w, http.StatusOK, rows)
}
