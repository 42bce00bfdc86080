package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/cse-console/internal/ports"
)

const defaultRefreshInterval = time.Minute

// TokenRefresherOptions groups dependencies for TokenRefresher.
type TokenRefresherOptions struct {
	Refresher ports.Refresher
	Tokens    ports.TokenStore
	// Interval is how often the stored token is checked. A token expiring within two
	// intervals is renewed.
	Interval time.Duration
	Logger   *slog.Logger
	// Now is overridable for tests.
	Now func() time.Time
}

// TokenRefresher keeps the persisted provider session alive while the console runs.
type TokenRefresher struct {
	refresher ports.Refresher
	tokens    ports.TokenStore
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewTokenRefresher constructs a TokenRefresher.
func NewTokenRefresher(opts TokenRefresherOptions) (*TokenRefresher, error) {
	if opts.Refresher == nil {
		return nil, errors.New("refresher is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token store is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenRefresher{
		refresher: opts.Refresher,
		tokens:    opts.Tokens,
		interval:  interval,
		logger:    logger,
		now:       now,
	}, nil
}

// Run checks the token at every interval until ctx is cancelled.
// Returns nil on graceful shutdown.
func (t *TokenRefresher) Run(ctx context.Context) error {
	t.logger.InfoContext(ctx, "starting token refresher", "interval", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.InfoContext(ctx, "token refresher stopped")
			return nil
		case <-ticker.C:
			if _, err := t.RefreshIfDue(ctx); err != nil && ctx.Err() == nil {
				t.logger.WarnContext(ctx, "token refresh failed", "error", err)
			}
		}
	}
}

// RefreshIfDue renews the session when the stored token is close to expiry and reports
// whether a refresh was attempted. Nothing stored means signed out; nothing to do.
func (t *TokenRefresher) RefreshIfDue(ctx context.Context) (bool, error) {
	tok, err := t.tokens.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load token: %w", err)
	}
	if tok == nil || tok.RefreshToken == "" {
		return false, nil
	}
	if !tok.ExpiresAt.IsZero() && tok.ExpiresAt.Sub(t.now()) > 2*t.interval {
		return false, nil
	}
	if err := t.refresher.Refresh(ctx); err != nil {
		return true, err
	}
	t.logger.DebugContext(ctx, "provider session refreshed")
	return true, nil
}
