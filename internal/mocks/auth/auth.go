package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/target/cse-console/internal/adapters/listeners"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.Authorizer       = (*StaticAuthorizer)(nil)
	_ ports.AccessStore      = (*MemoryAccessStore)(nil)
	_ ports.TokenStore       = (*MemoryTokenStore)(nil)
)

// Account is a credential known to MockIdentityProvider.
type Account struct {
	Password string
	Identity domainauth.Identity
}

// MockIdentityProvider simulates an identity provider with a fixed account table.
// Func fields override the default behavior when set.
type MockIdentityProvider struct {
	SignInFunc  func(ctx context.Context, email, password string) (domainauth.Identity, error)
	GetUserFunc func(ctx context.Context) (*domainauth.Identity, error)
	SignOutFunc func(ctx context.Context) error

	Accounts map[string]Account

	mu      sync.Mutex
	current *domainauth.Identity
	subs    listeners.Set

	SignOutCalls int
}

// NewMockIdentityProvider creates a provider that knows the given accounts keyed by email.
func NewMockIdentityProvider(accounts map[string]Account) *MockIdentityProvider {
	return &MockIdentityProvider{Accounts: accounts}
}

func (m *MockIdentityProvider) SignInWithPassword(
	ctx context.Context,
	email, password string,
) (domainauth.Identity, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, email, password)
	}
	acct, ok := m.Accounts[email]
	if !ok || acct.Password != password {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}
	id := acct.Identity
	m.mu.Lock()
	m.current = &id
	m.mu.Unlock()
	return id, nil
}

func (m *MockIdentityProvider) GetUser(ctx context.Context) (*domainauth.Identity, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	id := *m.current
	return &id, nil
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.SignOutCalls++
	m.current = nil
	m.mu.Unlock()
	if m.SignOutFunc != nil {
		return m.SignOutFunc(ctx)
	}
	return nil
}

func (m *MockIdentityProvider) Subscribe(fn ports.IdentityListener) func() {
	return m.subs.Add(fn)
}

// Emit publishes a change event as the real provider would on refresh or remote sign-out.
func (m *MockIdentityProvider) Emit(identity *domainauth.Identity) {
	m.mu.Lock()
	m.current = identity
	m.mu.Unlock()
	m.subs.Publish(identity)
}

// Subscribers returns the number of registered listeners.
func (m *MockIdentityProvider) Subscribers() int { return m.subs.Len() }

// StaticAuthorizer answers role checks from a fixed table of user id → roles.
type StaticAuthorizer struct {
	Roles map[string][]domainauth.Role
	Err   error

	mu    sync.Mutex
	Calls int
}

func (s *StaticAuthorizer) HasRole(_ context.Context, role domainauth.Role, userID string) (bool, error) {
	s.mu.Lock()
	s.Calls++
	s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	for _, r := range s.Roles[userID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// MemoryAccessStore is an in-memory access store for unit tests.
type MemoryAccessStore struct {
	mu       sync.Mutex
	profiles []domainauth.ManagedIdentity
	levels   domainauth.AccessMap

	// UpsertErr, when set, fails every write.
	UpsertErr error
	// ListErr, when set, fails every read.
	ListErr error
}

// NewMemoryAccessStore creates a store seeded with profiles.
func NewMemoryAccessStore(profiles ...domainauth.ManagedIdentity) *MemoryAccessStore {
	return &MemoryAccessStore{
		profiles: append([]domainauth.ManagedIdentity(nil), profiles...),
		levels:   make(domainauth.AccessMap),
	}
}

func (m *MemoryAccessStore) ListProfiles(_ context.Context) ([]domainauth.ManagedIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := append([]domainauth.ManagedIdentity(nil), m.profiles...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *MemoryAccessStore) ListAccessLevels(_ context.Context) (domainauth.AccessMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.levels.Clone(), nil
}

func (m *MemoryAccessStore) UpsertAccessLevel(_ context.Context, userID string, level domainauth.AccessLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if userID == "" {
		return errors.New("user id is required")
	}
	m.levels[userID] = level
	return nil
}

func (m *MemoryAccessStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ListErr
}

// Stored returns the persisted level for userID and whether a record exists.
func (m *MemoryAccessStore) Stored(userID string) (domainauth.AccessLevel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.levels[userID]
	return l, ok
}

// MemoryTokenStore keeps a single token in memory.
type MemoryTokenStore struct {
	mu  sync.Mutex
	tok *ports.Token
}

func (m *MemoryTokenStore) Save(_ context.Context, tok ports.Token) error {
	if tok.AccessToken == "" {
		return errors.New("access token cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = &tok
	return nil
}

func (m *MemoryTokenStore) Load(_ context.Context) (*ports.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, nil
	}
	t := *m.tok
	return &t, nil
}

func (m *MemoryTokenStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	return nil
}
