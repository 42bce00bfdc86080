package data

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	apperrors "github.com/target/cse-console/internal/errors"
)

const (
	adminID = "7d0c3a7e-9d43-4a51-8f0e-5b7a1c9e2f10"
	userID  = "1b9e5f2a-3c4d-4e6f-8a7b-9c0d1e2f3a4b"
)

var hasRoleQuery = regexp.QuoteMeta(`SELECT has_role($1::app_role, $2::uuid)`)

func TestRoleRepo_HasRole(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "granted", want: true},
		{name: "not granted", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(hasRoleQuery).
				WithArgs("admin", adminID).
				WillReturnRows(sqlmock.NewRows([]string{"has_role"}).AddRow(tt.want))

			ok, err := NewRoleRepo(db).HasRole(context.Background(), domainauth.RoleAdmin, adminID)

			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRoleRepo_HasRole_MalformedID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ok, err := NewRoleRepo(db).HasRole(context.Background(), domainauth.RoleAdmin, "admin-1")

	assert.False(t, ok)
	require.ErrorIs(t, err, domainauth.ErrRoleUnauthorized)
	require.ErrorIs(t, err, ErrInvalidUserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleRepo_HasRole_DatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(hasRoleQuery).WillReturnError(errors.New("connection reset by peer"))

	_, err = NewRoleRepo(db).HasRole(context.Background(), domainauth.RoleUser, userID)

	require.Error(t, err)
	assert.NotErrorIs(t, err, domainauth.ErrRoleUnauthorized)
	assert.Contains(t, err.Error(), "has_role")
}

func TestRoleRepo_HasRole_UnknownRoleEnum(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(hasRoleQuery).WillReturnError(&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation})

	_, err = NewRoleRepo(db).HasRole(context.Background(), domainauth.Role("owner"), userID)

	assert.True(t, apperrors.IsValidation(err))
}
