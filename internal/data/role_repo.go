package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	apperrors "github.com/target/cse-console/internal/errors"
)

// RoleRepo answers role checks with the has_role database function.
type RoleRepo struct {
	DB *sql.DB
}

// NewRoleRepo creates a new RoleRepo.
func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{DB: db}
}

// HasRole calls has_role(_role, _user_id).
func (r *RoleRepo) HasRole(ctx context.Context, role domainauth.Role, userID string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, fmt.Errorf("%w: %w", domainauth.ErrRoleUnauthorized, ErrInvalidUserID)
	}
	var ok bool
	err := r.DB.QueryRowContext(ctx, `SELECT has_role($1::app_role, $2::uuid)`, string(role), userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("has_role: %w", apperrors.MapDBError(err))
	}
	return ok, nil
}
