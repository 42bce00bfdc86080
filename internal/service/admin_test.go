package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	authmocks "github.com/target/cse-console/internal/mocks/auth"
	"github.com/target/cse-console/internal/session"
)

type adminFixture struct {
	provider *authmocks.MockIdentityProvider
	sessions *session.Store
	gateway  *AuthGateway
	authz    *authmocks.StaticAuthorizer
	access   *authmocks.MemoryAccessStore
	flow     *AdminFlow
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	provider := authmocks.NewMockIdentityProvider(testAccounts())
	sessions := session.New(provider, session.Options{})
	t.Cleanup(sessions.Close)
	require.NoError(t, sessions.Initialize(context.Background()))

	gw := NewAuthGateway(AuthGatewayOptions{Provider: provider, Sessions: sessions})
	authz := &authmocks.StaticAuthorizer{Roles: map[string][]domainauth.Role{
		"admin-1": {domainauth.RoleAdmin, domainauth.RoleUser},
		"user-1":  {domainauth.RoleUser},
	}}
	access := authmocks.NewMemoryAccessStore(
		domainauth.ManagedIdentity{ID: "user-1", Email: userEmail},
		domainauth.ManagedIdentity{ID: "admin-1", Email: adminEmail},
	)
	roles := NewRoleResolver(RoleResolverOptions{Authorizer: authz, Sessions: sessions, Backoff: time.Millisecond})

	return &adminFixture{
		provider: provider,
		sessions: sessions,
		gateway:  gw,
		authz:    authz,
		access:   access,
		flow: NewAdminFlow(AdminFlowOptions{
			Gateway:  gw,
			Roles:    roles,
			Store:    access,
			Sessions: sessions,
		}),
	}
}

func TestAdminFlow_Login_Success(t *testing.T) {
	f := newAdminFixture(t)

	dir, err := f.flow.Login(context.Background(), "  Admin@X.com ", goodPW)

	require.NoError(t, err)
	require.NotNil(t, dir)
	defer dir.Close()
	got := dir.ListManagedIdentities()
	require.Len(t, got, 2)
	assert.Equal(t, adminEmail, got[0].Email)
	assert.Equal(t, userEmail, got[1].Email)
}

func TestAdminFlow_Login_NotAdmin(t *testing.T) {
	f := newAdminFixture(t)

	dir, err := f.flow.Login(context.Background(), userEmail, goodPW)

	require.ErrorIs(t, err, domainauth.ErrAccessDenied)
	assert.Nil(t, dir)
	// The operator stays signed in as an ordinary user.
	require.NotNil(t, f.sessions.Snapshot().Identity)
	assert.Equal(t, "user-1", f.sessions.Snapshot().Identity.ID)
}

func TestAdminFlow_Login_RoleCheckFailureIsGenericDenial(t *testing.T) {
	f := newAdminFixture(t)
	f.authz.Err = errors.New("rpc unavailable")

	_, err := f.flow.Login(context.Background(), adminEmail, goodPW)

	require.ErrorIs(t, err, domainauth.ErrAccessDenied)
	assert.NotErrorIs(t, err, domainauth.ErrRoleTransport)
}

func TestAdminFlow_Login_BadCredentials(t *testing.T) {
	f := newAdminFixture(t)

	_, err := f.flow.Login(context.Background(), adminEmail, "nope")

	require.ErrorIs(t, err, domainauth.ErrInvalidCredentials)
	assert.Zero(t, f.authz.Calls)
}

func TestAdminFlow_Open_SignedOut(t *testing.T) {
	f := newAdminFixture(t)

	_, err := f.flow.Open(context.Background())

	require.ErrorIs(t, err, domainauth.ErrAccessDenied)
}

func TestAdminFlow_Open_LoadFailure(t *testing.T) {
	f := newAdminFixture(t)
	_, err := f.gateway.SignIn(context.Background(), adminEmail, goodPW)
	require.NoError(t, err)
	f.access.ListErr = errors.New("503")

	dir, err := f.flow.Open(context.Background())

	require.ErrorIs(t, err, domainauth.ErrNetwork)
	assert.Nil(t, dir)
}
