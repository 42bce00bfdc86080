package data

import (
	"context"
	"database/sql"

	"github.com/target/cse-console/internal/migrate"
)

// RunMigrations creates the profiles, user_roles and user_access schema and its functions
// by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
