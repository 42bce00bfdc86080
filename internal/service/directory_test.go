package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	apperrors "github.com/target/cse-console/internal/errors"
	"github.com/target/cse-console/internal/mocks"
	"go.uber.org/mock/gomock"
)

func openAsAdmin(t *testing.T, f *adminFixture) *AccessDirectory {
	t.Helper()
	dir, err := f.flow.Login(context.Background(), adminEmail, goodPW)
	require.NoError(t, err)
	t.Cleanup(dir.Close)
	return dir
}

func TestAccessDirectory_GetAccessLevel_DefaultsToNone(t *testing.T) {
	f := newAdminFixture(t)
	dir := openAsAdmin(t, f)

	assert.Equal(t, domainauth.AccessNone, dir.GetAccessLevel("user-1"))
	assert.Equal(t, domainauth.AccessNone, dir.GetAccessLevel("unknown"))
}

func TestAccessDirectory_SetAccessLevel_VisibleOnReturn(t *testing.T) {
	f := newAdminFixture(t)
	dir := openAsAdmin(t, f)

	require.NoError(t, dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessLimited))

	assert.Equal(t, domainauth.AccessLimited, dir.GetAccessLevel("user-1"))
	stored, ok := f.access.Stored("user-1")
	require.True(t, ok)
	assert.Equal(t, domainauth.AccessLimited, stored)

	// A fresh load agrees with the cached view.
	require.NoError(t, dir.Refresh(context.Background()))
	assert.Equal(t, domainauth.AccessLimited, dir.GetAccessLevel("user-1"))
}

func TestAccessDirectory_SetAccessLevel_RoleRevoked(t *testing.T) {
	f := newAdminFixture(t)
	dir := openAsAdmin(t, f)
	require.NoError(t, dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessFull))

	f.authz.Roles = map[string][]domainauth.Role{"admin-1": {domainauth.RoleUser}}
	err := dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessNone)

	require.ErrorIs(t, err, domainauth.ErrWriteForbidden)
	assert.Equal(t, domainauth.AccessFull, dir.GetAccessLevel("user-1"))
	stored, _ := f.access.Stored("user-1")
	assert.Equal(t, domainauth.AccessFull, stored)
}

func TestAccessDirectory_SetAccessLevel_RoleCheckFailure(t *testing.T) {
	f := newAdminFixture(t)
	dir := openAsAdmin(t, f)

	f.authz.Err = errors.New("connection reset")
	err := dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessFull)

	require.ErrorIs(t, err, domainauth.ErrWriteForbidden)
	assert.True(t, domainauth.IsAccessDenial(err))
	_, ok := f.access.Stored("user-1")
	assert.False(t, ok)
}

func TestAccessDirectory_SetAccessLevel_ChecksCurrentIdentity(t *testing.T) {
	f := newAdminFixture(t)
	dir := openAsAdmin(t, f)

	// Another operator signs in on the same console; the open directory must not honour them.
	_, err := f.gateway.SignIn(context.Background(), userEmail, goodPW)
	require.NoError(t, err)
	err = dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessFull)
	require.ErrorIs(t, err, domainauth.ErrWriteForbidden)

	require.NoError(t, f.gateway.SignOut(context.Background()))
	err = dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessFull)
	require.ErrorIs(t, err, domainauth.ErrWriteForbidden)

	assert.Equal(t, domainauth.AccessNone, dir.GetAccessLevel("user-1"))
}

func TestAccessDirectory_SetAccessLevel_StoreFailure(t *testing.T) {
	f := newAdminFixture(t)
	dir := openAsAdmin(t, f)
	f.access.UpsertErr = errors.New("row level security violation")

	err := dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessFull)

	require.ErrorIs(t, err, domainauth.ErrWriteTransport)
	assert.Equal(t, domainauth.AccessNone, dir.GetAccessLevel("user-1"))
}

func TestAccessDirectory_SetAccessLevel_StoreRefusal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sessions := signedIn("admin-1")
	authz := mocks.NewMockAuthorizer(ctrl)
	authz.EXPECT().HasRole(gomock.Any(), domainauth.RoleAdmin, "admin-1").Return(true, nil)
	store := mocks.NewMockAccessStore(ctrl)
	store.EXPECT().
		UpsertAccessLevel(gomock.Any(), "user-1", domainauth.AccessFull).
		Return(apperrors.Forbidden("admin role required"))

	dir := newAccessDirectory(accessDirectoryOptions{
		Store:    store,
		Roles:    newTestResolver(authz, sessions),
		Sessions: sessions,
	})

	err := dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessFull)

	require.ErrorIs(t, err, domainauth.ErrWriteForbidden)
	assert.NotErrorIs(t, err, domainauth.ErrWriteTransport)
	assert.True(t, domainauth.IsAccessDenial(err))
	assert.Equal(t, domainauth.AccessNone, dir.GetAccessLevel("user-1"))
}

func TestAccessDirectory_SetAccessLevel_Validation(t *testing.T) {
	f := newAdminFixture(t)
	dir := openAsAdmin(t, f)

	require.Error(t, dir.SetAccessLevel(context.Background(), "", domainauth.AccessFull))
	err := dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessLevel("root"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid access level")
}

func TestAccessDirectory_Closed(t *testing.T) {
	f := newAdminFixture(t)
	dir := openAsAdmin(t, f)
	dir.Close()

	assert.Empty(t, dir.ListManagedIdentities())
	assert.Equal(t, domainauth.AccessNone, dir.GetAccessLevel("user-1"))
	require.ErrorIs(t, dir.SetAccessLevel(context.Background(), "user-1", domainauth.AccessFull), ErrDirectoryClosed)
	require.ErrorIs(t, dir.Refresh(context.Background()), ErrDirectoryClosed)
	_, ok := f.access.Stored("user-1")
	assert.False(t, ok)
}

func TestAccessDirectory_Refresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockAccessStore(ctrl)
	store.EXPECT().ListProfiles(gomock.Any()).Return([]domainauth.ManagedIdentity{
		{ID: "z", Email: "zed@x.com"},
		{ID: "a", Email: "amy@x.com"},
	}, nil)
	store.EXPECT().ListAccessLevels(gomock.Any()).Return(domainauth.AccessMap{"a": domainauth.AccessFull}, nil)

	dir := newAccessDirectory(accessDirectoryOptions{Store: store, Sessions: fixedSession{}})
	require.NoError(t, dir.Refresh(context.Background()))

	got := dir.ListManagedIdentities()
	require.Len(t, got, 2)
	assert.Equal(t, "amy@x.com", got[0].Email)
	assert.Equal(t, domainauth.AccessFull, dir.GetAccessLevel("a"))
	assert.Equal(t, domainauth.AccessNone, dir.GetAccessLevel("z"))
}

func TestAccessDirectory_Refresh_FailureKeepsPreviousView(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockAccessStore(ctrl)
	gomock.InOrder(
		store.EXPECT().ListProfiles(gomock.Any()).Return([]domainauth.ManagedIdentity{{ID: "a", Email: "amy@x.com"}}, nil),
		store.EXPECT().ListProfiles(gomock.Any()).Return([]domainauth.ManagedIdentity{}, nil),
	)
	gomock.InOrder(
		store.EXPECT().ListAccessLevels(gomock.Any()).Return(domainauth.AccessMap{"a": domainauth.AccessLimited}, nil),
		store.EXPECT().ListAccessLevels(gomock.Any()).Return(nil, errors.New("timeout")),
	)

	dir := newAccessDirectory(accessDirectoryOptions{Store: store, Sessions: fixedSession{}})
	require.NoError(t, dir.Refresh(context.Background()))

	err := dir.Refresh(context.Background())

	require.ErrorIs(t, err, domainauth.ErrNetwork)
	assert.Len(t, dir.ListManagedIdentities(), 1)
	assert.Equal(t, domainauth.AccessLimited, dir.GetAccessLevel("a"))
}
