package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
)

func TestParseProfiles(t *testing.T) {
	got, err := ParseProfiles(" u2=Zed@x.com|Zed Zee , u1=amy@x.com ,")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "zed@x.com", got[0].Email)
	require.NotNil(t, got[0].DisplayName)
	assert.Equal(t, "Zed Zee", *got[0].DisplayName)
	assert.Nil(t, got[1].DisplayName)

	for _, bad := range []string{"u1", "=a@x.com", "u1=not-an-email", "u1=a@x.com,u1=b@x.com"} {
		_, err := ParseProfiles(bad)
		assert.Error(t, err, bad)
	}
}

func TestStore_ListSortedByEmail(t *testing.T) {
	s := New(
		domainauth.ManagedIdentity{ID: "2", Email: "b@x.com"},
		domainauth.ManagedIdentity{ID: "1", Email: "a@x.com"},
	)
	got, err := s.ListProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got[0].Email)
	assert.Equal(t, "b@x.com", got[1].Email)
}

func TestStore_UpsertAccessLevel(t *testing.T) {
	ctx := context.Background()
	s := New(domainauth.ManagedIdentity{ID: "1", Email: "a@x.com"})

	require.NoError(t, s.UpsertAccessLevel(ctx, "1", domainauth.AccessLimited))
	levels, err := s.ListAccessLevels(ctx)
	require.NoError(t, err)
	assert.Equal(t, domainauth.AccessLimited, levels.Get("1"))

	levels["1"] = domainauth.AccessFull
	again, _ := s.ListAccessLevels(ctx)
	assert.Equal(t, domainauth.AccessLimited, again.Get("1"), "returned map must be a copy")

	require.ErrorIs(t, s.UpsertAccessLevel(ctx, "missing", domainauth.AccessFull), ErrUnknownProfile)
	require.Error(t, s.UpsertAccessLevel(ctx, "1", domainauth.AccessLevel("partial")))
	require.NoError(t, s.Ping(ctx))
}

func TestStore_ImplementsAccessStore(t *testing.T) {
	var _ ports.AccessStore = (*Store)(nil)
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	var s ports.TokenStore = NewTokenStore()

	tok, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)

	require.Error(t, s.Save(ctx, ports.Token{}))
	require.NoError(t, s.Save(ctx, ports.Token{AccessToken: "a", RefreshToken: "r"}))

	tok, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, tok)
	tok.AccessToken = "mutated"

	again, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", again.AccessToken)

	require.NoError(t, s.Clear(ctx))
	tok, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)
}
