package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/target/cse-console/internal/data/sqlutil"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	apperrors "github.com/target/cse-console/internal/errors"
)

// CallerFunc returns the id of the identity a write is performed as.
type CallerFunc func(ctx context.Context) string

// AccessRepo provides database operations for profiles and access levels.
type AccessRepo struct {
	DB     *sql.DB
	caller CallerFunc
}

// NewAccessRepo creates a new AccessRepo. caller identifies the acting operator for writes;
// set_user_access refuses writes from identities without the admin role.
func NewAccessRepo(db *sql.DB, caller CallerFunc) *AccessRepo {
	return &AccessRepo{DB: db, caller: caller}
}

// ListProfiles returns all profiles ordered by email.
func (r *AccessRepo) ListProfiles(ctx context.Context) ([]domainauth.ManagedIdentity, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, email, full_name
		FROM profiles
		ORDER BY email ASC`)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []domainauth.ManagedIdentity
	for rows.Next() {
		var (
			m        domainauth.ManagedIdentity
			fullName sql.NullString
		)
		if scanErr := rows.Scan(&m.ID, &m.Email, &fullName); scanErr != nil {
			return nil, fmt.Errorf("scan profile: %w", scanErr)
		}
		if fullName.Valid {
			name := fullName.String
			m.DisplayName = &name
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// ListAccessLevels returns every user_access row keyed by user id.
func (r *AccessRepo) ListAccessLevels(ctx context.Context) (domainauth.AccessMap, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id, access_level FROM user_access`)
	if err != nil {
		return nil, fmt.Errorf("select user_access: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	out := make(domainauth.AccessMap)
	for rows.Next() {
		var id, level string
		if scanErr := rows.Scan(&id, &level); scanErr != nil {
			return nil, fmt.Errorf("scan user_access: %w", scanErr)
		}
		if parsed, parseErr := domainauth.ParseAccessLevel(level); parseErr == nil {
			out[id] = parsed
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user_access: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// UpsertAccessLevel calls set_user_access as the current caller. The caller id is bound to
// the transaction so the function can check it with has_role.
func (r *AccessRepo) UpsertAccessLevel(ctx context.Context, userID string, level domainauth.AccessLevel) error {
	if _, err := uuid.Parse(userID); err != nil {
		return ErrInvalidUserID
	}
	caller := ""
	if r.caller != nil {
		caller = r.caller(ctx)
	}
	if caller == "" {
		return ErrCallerRequired
	}

	err := sqlutil.WithTx(ctx, r.DB, sqlutil.TxConfig{Fn: func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT set_config('app.current_user_id', $1, true)`, caller); err != nil {
			return fmt.Errorf("bind caller: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `SELECT set_user_access($1::uuid, $2::access_level)`, userID, string(level)); err != nil {
			return fmt.Errorf("set_user_access: %w", err)
		}
		return nil
	}})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Ping checks connectivity and that the profiles table is readable.
func (r *AccessRepo) Ping(ctx context.Context) error {
	var one int
	err := r.DB.QueryRowContext(ctx, `SELECT 1 FROM profiles LIMIT 1`).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ping profiles: %w", apperrors.MapDBError(err))
	}
	return nil
}
