package oidc

// Package oidc provides an OIDC identity provider for the console: resource-owner password
// sign-in, ID token verification, claim mapping and refresh.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/cse-console/internal/adapters/listeners"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
	"golang.org/x/oauth2"
)

const (
	defaultEmailClaim = "email"
	defaultNameClaim  = "name || preferred_username"
)

// Provider implements ports.IdentityProvider and ports.Refresher using OIDC/OAuth2.
type Provider struct {
	config        *oauth2.Config
	httpClient    *http.Client
	revocationURL string
	emailClaim    string
	nameClaim     string
	tokens        ports.TokenStore
	logger        *slog.Logger

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier

	mu      sync.Mutex
	current *domainauth.Identity
	subs    listeners.Set
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	// EmailClaim and NameClaim are JMESPath expressions evaluated against the ID token claims.
	EmailClaim string
	NameClaim  string
	// Tokens persists the session between restarts. Required.
	Tokens     ports.TokenStore
	HTTPClient *http.Client // Optional, defaults to a client with a 30s timeout
	Logger     *slog.Logger
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	UserinfoEndpoint      string   `json:"userinfo_endpoint"`
	JwksURI               string   `json:"jwks_uri"`
	RevocationEndpoint    string   `json:"revocation_endpoint,omitempty"`
	SigningAlgs           []string `json:"id_token_signing_alg_values_supported,omitempty"`
}

// NewProvider creates a new OIDC provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	if config.Tokens == nil {
		return nil, errors.New("token store is required")
	}

	emailClaim := firstNonEmpty(strings.TrimSpace(config.EmailClaim), defaultEmailClaim)
	nameClaim := firstNonEmpty(strings.TrimSpace(config.NameClaim), defaultNameClaim)
	for _, expr := range []string{emailClaim, nameClaim} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid claim expression %q: %w", expr, err)
		}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		httpClient: httpClient,
		emailClaim: emailClaim,
		nameClaim:  nameClaim,
		tokens:     config.Tokens,
		logger:     logger,
	}

	// Single discovery fetch for provider, verifier and endpoints.
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(p.clientContext(ctx), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if claimsErr := op.Claims(&extra); claimsErr == nil {
		p.revocationURL = extra.RevocationEndpoint
	}

	scopes := strings.Fields(config.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile", gooidc.ScopeOfflineAccess}
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       scopes,
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// SignInWithPassword runs the resource-owner password grant and verifies the returned ID token.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (domainauth.Identity, error) {
	tok, err := p.config.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		if isInvalidGrant(err) {
			return domainauth.Identity{}, domainauth.ErrInvalidCredentials
		}
		return domainauth.Identity{}, fmt.Errorf("password grant: %w", err)
	}

	stored := toPortToken(tok, "")
	identity, err := p.identityFromIDToken(ctx, stored.IDToken)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if err := p.tokens.Save(ctx, stored); err != nil {
		return domainauth.Identity{}, fmt.Errorf("save token: %w", err)
	}

	p.setCurrent(&identity)
	return identity, nil
}

// GetUser returns the identity of the persisted session. An expired session is refreshed first.
func (p *Provider) GetUser(ctx context.Context) (*domainauth.Identity, error) {
	p.mu.Lock()
	if p.current != nil {
		id := *p.current
		p.mu.Unlock()
		return &id, nil
	}
	p.mu.Unlock()

	tok, err := p.tokens.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	if tok == nil {
		return nil, nil
	}
	if !tok.ExpiresAt.IsZero() && time.Now().After(tok.ExpiresAt) {
		if tok.RefreshToken == "" {
			_ = p.tokens.Clear(ctx)
			return nil, nil
		}
		if refreshErr := p.Refresh(ctx); refreshErr != nil {
			if isInvalidGrant(refreshErr) {
				return nil, nil
			}
			return nil, refreshErr
		}
		return p.snapshot(), nil
	}

	identity, err := p.identityFromIDToken(ctx, tok.IDToken)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.current = &identity
	p.mu.Unlock()
	return &identity, nil
}

// Refresh renews the persisted session with its refresh token and publishes the result.
// A rejected refresh token ends the session and publishes a sign-out.
func (p *Provider) Refresh(ctx context.Context) error {
	tok, err := p.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if tok == nil || tok.RefreshToken == "" {
		return nil
	}

	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{
		RefreshToken: tok.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})
	fresh, err := src.Token()
	if err != nil {
		if isInvalidGrant(err) {
			p.logger.InfoContext(ctx, "refresh token rejected, ending session")
			_ = p.tokens.Clear(ctx)
			p.setCurrent(nil)
		}
		return fmt.Errorf("refresh token: %w", err)
	}

	stored := toPortToken(fresh, tok.IDToken)
	if stored.RefreshToken == "" {
		stored.RefreshToken = tok.RefreshToken
	}
	identity, err := p.identityFromIDToken(ctx, stored.IDToken)
	if err != nil {
		return err
	}
	if err := p.tokens.Save(ctx, stored); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	p.setCurrent(&identity)
	return nil
}

// SignOut ends the local session and revokes the refresh token when the issuer supports it.
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
	if tok == nil || p.revocationURL == "" {
		return nil
	}
	return p.revoke(ctx, firstNonEmpty(tok.RefreshToken, tok.AccessToken))
}

func (p *Provider) Subscribe(fn ports.IdentityListener) func() {
	return p.subs.Add(fn)
}

func (p *Provider) revoke(ctx context.Context, token string) error {
	form := url.Values{"token": {token}, "client_id": {p.config.ClientID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(p.config.ClientID), url.QueryEscape(p.config.ClientSecret))
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("revoke token: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *Provider) identityFromIDToken(ctx context.Context, rawID string) (domainauth.Identity, error) {
	if rawID == "" {
		return domainauth.Identity{}, errors.New("missing id_token in token response")
	}
	idTok, err := p.verifier.Verify(p.clientContext(ctx), rawID)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}
	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	return mapClaims(idTok.Subject, claims, p.emailClaim, p.nameClaim), nil
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

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// mapClaims builds an identity from verified claims using the configured expressions.
func mapClaims(subject string, claims map[string]any, emailExpr, nameExpr string) domainauth.Identity {
	identity := domainauth.Identity{
		ID:    subject,
		Email: searchString(emailExpr, claims),
	}
	if name := searchString(nameExpr, claims); name != "" {
		identity.DisplayName = &name
	}
	return identity
}

func searchString(expr string, data map[string]any) string {
	v, err := jmespath.Search(expr, data)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func toPortToken(tok *oauth2.Token, fallbackIDToken string) ports.Token {
	out := ports.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      fallbackIDToken,
		ExpiresAt:    tok.Expiry,
	}
	if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
		out.IDToken = raw
	}
	if out.ExpiresAt.IsZero() {
		out.ExpiresAt = time.Now().Add(time.Hour)
	}
	return out
}

// isInvalidGrant reports whether the token endpoint rejected the grant itself.
func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	if re.ErrorCode == "invalid_grant" {
		return true
	}
	return re.Response != nil && re.Response.StatusCode == http.StatusUnauthorized
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
