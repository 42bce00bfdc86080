package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/cse-console/config"
	"github.com/target/cse-console/internal/adapters/devauth"
	"github.com/target/cse-console/internal/adapters/memstore"
	"github.com/target/cse-console/internal/bootstrap"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/migrate"
	"github.com/target/cse-console/internal/service"
	"golang.org/x/term"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
	adminPasswordEnv        = "CSE_ADMIN_PASSWORD"
)

type migrateOptions struct {
	Timeout time.Duration
	Status  bool
}

type adminOptions struct {
	Email string
}

type setAccessOptions struct {
	adminOptions
	User  string
	Level domainauth.AccessLevel
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}
	if cmdCtx.Config.Store.Mode != config.StoreModePostgres {
		return fmt.Errorf("migrate needs STORE_MODE=postgres (current: %s)", cmdCtx.Config.Store.Mode)
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	if opts.Status {
		pending, pendErr := migrate.Pending(ctx, db)
		if pendErr != nil {
			return fmt.Errorf("list pending migrations: %w", pendErr)
		}
		return printPending(cmdCtx, pending)
	}

	cmdCtx.Logger.Info("running database migrations")

	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}

	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}

func printPending(cmdCtx *commandContext, pending []string) error {
	if len(pending) == 0 {
		return writeln(cmdCtx.Out, "Schema is up to date.")
	}
	if err := writef(cmdCtx.Out, "%d pending migration(s):\n", len(pending)); err != nil {
		return err
	}
	for _, name := range pending {
		if err := writef(cmdCtx.Out, "  %s\n", name); err != nil {
			return err
		}
	}
	return nil
}

func runDBStatus(cmdCtx *commandContext, args []string) error {
	if len(args) > 0 {
		return errors.New("db-status takes no arguments")
	}
	return withConsole(cmdCtx, func(ctx context.Context, c *bootstrap.Console) error {
		if err := c.Store.Ping(ctx); err != nil {
			if werr := writef(cmdCtx.Out, "Access store (%s): Error\n  %v\n", cmdCtx.Config.Store.Mode, err); werr != nil {
				return werr
			}
			return fmt.Errorf("access store unreachable: %w", err)
		}
		return writef(cmdCtx.Out, "Access store (%s): OK\n", cmdCtx.Config.Store.Mode)
	})
}

func runListUsers(cmdCtx *commandContext, args []string) error {
	opts, err := parseAdminFlags("users", args)
	if err != nil {
		return err
	}
	return withDirectory(cmdCtx, opts, func(_ context.Context, dir *service.AccessDirectory) error {
		return printDirectory(cmdCtx, dir)
	})
}

func runSetAccess(cmdCtx *commandContext, args []string) error {
	opts, err := parseSetAccessFlags(args)
	if err != nil {
		return err
	}
	return withDirectory(cmdCtx, opts.adminOptions, func(ctx context.Context, dir *service.AccessDirectory) error {
		target, ok := findIdentity(dir, opts.User)
		if !ok {
			return fmt.Errorf("no profile matches %q", opts.User)
		}
		if err := dir.SetAccessLevel(ctx, target.ID, opts.Level); err != nil {
			if domainauth.IsAccessDenial(err) {
				return errors.New("access denied")
			}
			return fmt.Errorf("update access level: %w", err)
		}
		return writef(cmdCtx.Out, "%s is now %s\n", target.Email, dir.GetAccessLevel(target.ID))
	})
}

func runHashPassword(cmdCtx *commandContext, args []string) error {
	if len(args) > 0 {
		return errors.New("hash-password takes no arguments")
	}
	pw, err := cmdCtx.Password("Password: ")
	if err != nil {
		return err
	}
	again, err := cmdCtx.Password("Repeat password: ")
	if err != nil {
		return err
	}
	if pw != again {
		return errors.New("passwords do not match")
	}
	hash, err := devauth.HashPassword(pw)
	if err != nil {
		return err
	}
	return writeln(cmdCtx.Out, hash)
}

// withConsole builds a console whose provider session lives only in this process.
func withConsole(cmdCtx *commandContext, fn func(ctx context.Context, c *bootstrap.Console) error) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultCommandTimeout)
	defer cancel()

	cfg := cmdCtx.Config
	deps := &bootstrap.ConsoleDeps{Config: &cfg, Tokens: memstore.NewTokenStore(), Logger: cmdCtx.Logger}
	if cfg.UsesPostgres() {
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: cmdCtx.Logger})
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				cmdCtx.Logger.Warn("db close failed", "error", closeErr)
			}
		}()
		deps.DB = db
	}

	c, err := bootstrap.NewConsole(ctx, deps)
	if err != nil {
		return fmt.Errorf("build console: %w", err)
	}
	defer c.Close()
	if err := c.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, c)
}

// withDirectory signs in through the admin flow and hands fn the opened directory.
func withDirectory(
	cmdCtx *commandContext,
	opts adminOptions,
	fn func(ctx context.Context, dir *service.AccessDirectory) error,
) error {
	password := os.Getenv(adminPasswordEnv)
	if password == "" {
		var err error
		if password, err = cmdCtx.Password(fmt.Sprintf("Password for %s: ", opts.Email)); err != nil {
			return err
		}
	}
	return withConsole(cmdCtx, func(ctx context.Context, c *bootstrap.Console) error {
		dir, err := c.Admin.Login(ctx, opts.Email, password)
		if err != nil {
			if domainauth.IsAccessDenial(err) {
				return errors.New("access denied")
			}
			return fmt.Errorf("admin login: %w", err)
		}
		defer dir.Close()
		return fn(ctx, dir)
	})
}

func findIdentity(dir *service.AccessDirectory, user string) (domainauth.ManagedIdentity, bool) {
	for _, m := range dir.ListManagedIdentities() {
		if m.ID == user || strings.EqualFold(m.Email, user) {
			return m, true
		}
	}
	return domainauth.ManagedIdentity{}, false
}

func printDirectory(cmdCtx *commandContext, dir *service.AccessDirectory) error {
	w := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if err := writeln(w, "ID\tEmail\tName\tAccess"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, m := range dir.ListManagedIdentities() {
		name := "-"
		if m.DisplayName != nil && *m.DisplayName != "" {
			name = *m.DisplayName
		}
		if err := writef(w, "%s\t%s\t%s\t%s\n", m.ID, m.Email, name, dir.GetAccessLevel(m.ID)); err != nil {
			return fmt.Errorf("write row %q: %w", m.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}

// promptPassword reads a password without echoing it to the terminal.
func promptPassword(prompt string) (string, error) {
	if err := writef(os.Stderr, "%s", prompt); err != nil {
		return "", err
	}
	pw, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if err := writeln(os.Stderr, ""); err != nil {
		return "", err
	}
	return string(pw), nil
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)
	fs.BoolVar(&opts.Status, "status", false, "List pending migrations without applying them")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be positive")
	}
	return opts, nil
}

func registerAdminFlags(fs *flag.FlagSet, opts *adminOptions) {
	fs.StringVar(&opts.Email, "admin-email", "", "Administrator email to sign in with (required)")
}

func parseAdminFlags(name string, args []string) (adminOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts adminOptions
	registerAdminFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return adminOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	if opts.Email == "" {
		return adminOptions{}, errors.New("--admin-email is required")
	}
	return opts, nil
}

func parseSetAccessFlags(args []string) (setAccessOptions, error) {
	fs := flag.NewFlagSet("set-access", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts  setAccessOptions
		level string
	)
	registerAdminFlags(fs, &opts.adminOptions)
	fs.StringVar(&opts.User, "user", "", "Profile id or email to update (required)")
	fs.StringVar(&level, "level", "", "Access level: full, limited or none (required)")

	if err := fs.Parse(args); err != nil {
		return setAccessOptions{}, err
	}
	opts.Email = strings.TrimSpace(opts.Email)
	opts.User = strings.TrimSpace(opts.User)
	if opts.Email == "" {
		return setAccessOptions{}, errors.New("--admin-email is required")
	}
	if opts.User == "" {
		return setAccessOptions{}, errors.New("--user is required")
	}
	parsed, err := domainauth.ParseAccessLevel(level)
	if err != nil {
		return setAccessOptions{}, err
	}
	opts.Level = parsed
	return opts, nil
}
