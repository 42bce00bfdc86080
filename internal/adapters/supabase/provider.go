package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/target/cse-console/internal/adapters/listeners"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
)

// Provider implements ports.IdentityProvider and ports.Refresher against GoTrue.
type Provider struct {
	client *Client
	tokens ports.TokenStore
	logger *slog.Logger

	mu      sync.Mutex
	current *domainauth.Identity
	subs    listeners.Set
}

// NewProvider constructs a GoTrue provider. The token store is shared with the client so
// PostgREST calls run as the signed-in operator.
func NewProvider(client *Client, tokens ports.TokenStore, logger *slog.Logger) (*Provider, error) {
	if client == nil {
		return nil, errors.New("supabase client is required")
	}
	if tokens == nil {
		return nil, errors.New("token store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{client: client, tokens: tokens, logger: logger}, nil
}

type gotrueUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FullName string `json:"full_name"`
		Name     string `json:"name"`
	} `json:"user_metadata"`
}

func (u gotrueUser) identity() domainauth.Identity {
	id := domainauth.Identity{ID: u.ID, Email: u.Email}
	if name := firstNonEmpty(u.UserMetadata.FullName, u.UserMetadata.Name); name != "" {
		id.DisplayName = &name
	}
	return id
}

type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         gotrueUser `json:"user"`
}

func (s gotrueSession) token() ports.Token {
	exp := time.Now().Add(time.Hour)
	switch {
	case s.ExpiresAt > 0:
		exp = time.Unix(s.ExpiresAt, 0)
	case s.ExpiresIn > 0:
		exp = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return ports.Token{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: exp}
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error) {
	var sess gotrueSession
	err := p.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
		bearer: p.client.apiKey,
	}, &sess)
	if err != nil {
		if isRejectedGrant(err) {
			return domainauth.Identity{}, domainauth.ErrInvalidCredentials
		}
		return domainauth.Identity{}, fmt.Errorf("gotrue sign in: %w", err)
	}
	if sess.AccessToken == "" || sess.User.ID == "" {
		return domainauth.Identity{}, errors.New("gotrue sign in: incomplete session in response")
	}

	if err := p.tokens.Save(ctx, sess.token()); err != nil {
		return domainauth.Identity{}, fmt.Errorf("save token: %w", err)
	}
	identity := sess.User.identity()
	p.setCurrent(&identity)
	return identity, nil
}

// GetUser validates the persisted session with GoTrue. A session GoTrue no longer accepts is
// treated as signed out.
func (p *Provider) GetUser(ctx context.Context) (*domainauth.Identity, error) {
	if cur := p.snapshot(); cur != nil {
		return cur, nil
	}

	tok, err := p.tokens.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if tok == nil {
		return nil, nil
	}
	if time.Now().After(tok.ExpiresAt) {
		if refreshErr := p.Refresh(ctx); refreshErr != nil {
			if isRejectedGrant(refreshErr) {
				return nil, nil
			}
			return nil, refreshErr
		}
		return p.snapshot(), nil
	}

	var user gotrueUser
	err = p.client.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", bearer: tok.AccessToken}, &user)
	if err != nil {
		if statusOf(err) == http.StatusUnauthorized || statusOf(err) == http.StatusForbidden {
			_ = p.tokens.Clear(ctx)
			return nil, nil
		}
		return nil, fmt.Errorf("gotrue get user: %w", err)
	}
	identity := user.identity()
	p.mu.Lock()
	p.current = &identity
	p.mu.Unlock()
	return &identity, nil
}

// Refresh exchanges the stored refresh token for a new session and publishes the result.
func (p *Provider) Refresh(ctx context.Context) error {
	tok, err := p.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if tok == nil || tok.RefreshToken == "" {
		return nil
	}

	var sess gotrueSession
	err = p.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": tok.RefreshToken},
		bearer: p.client.apiKey,
	}, &sess)
	if err != nil {
		if isRejectedGrant(err) {
			p.logger.InfoContext(ctx, "refresh token rejected, ending session")
			_ = p.tokens.Clear(ctx)
			p.setCurrent(nil)
		}
		return fmt.Errorf("gotrue refresh: %w", err)
	}

	if err := p.tokens.Save(ctx, sess.token()); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	identity := sess.User.identity()
	p.setCurrent(&identity)
	return nil
}

// SignOut drops the local session, then asks GoTrue to revoke it.
func (p *Provider) SignOut(ctx context.Context) error {
	tok, loadErr := p.tokens.Load(ctx)
	clearErr := p.tokens.Clear(ctx)
	p.setCurrent(nil)

	if loadErr != nil {
		return fmt.Errorf("load token: %w", loadErr)
	}
	if clearErr != nil {
		return fmt.Errorf("clear token: %w", clearErr)
	}
	if tok == nil {
		return nil
	}
	err := p.client.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", bearer: tok.AccessToken}, nil)
	if err != nil && statusOf(err) != http.StatusUnauthorized {
		return fmt.Errorf("gotrue logout: %w", err)
	}
	return nil
}

func (p *Provider) Subscribe(fn ports.IdentityListener) func() {
	return p.subs.Add(fn)
}

func (p *Provider) setCurrent(identity *domainauth.Identity) {
	var published *domainauth.Identity
	p.mu.Lock()
	changed := !domainauth.SameAs(p.current, identity)
	if identity == nil {
		p.current = nil
	} else {
		cp := *identity
		p.current = &cp
		published = &cp
	}
	p.mu.Unlock()
	if changed {
		p.subs.Publish(published)
	}
}

func (p *Provider) snapshot() *domainauth.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	id := *p.current
	return &id
}

// isRejectedGrant reports whether GoTrue refused the credentials or refresh token itself.
func isRejectedGrant(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case "invalid_grant", "invalid_credentials", "refresh_token_not_found", "refresh_token_already_used":
		return true
	}
	return (apiErr.Status == http.StatusBadRequest && apiErr.Code == "") ||
		apiErr.Status == http.StatusUnauthorized
}
