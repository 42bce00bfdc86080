package devauth

// Package devauth provides a simple, config-driven IdentityProvider for local development.
// One operator account is configured with a bcrypt password hash.

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/target/cse-console/internal/adapters/listeners"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
	"golang.org/x/crypto/bcrypt"
)

// Config controls the dev auth provider behavior.
// All fields are required except DisplayName.
type Config struct {
	UserID       string
	Email        string
	DisplayName  string
	PasswordHash string // bcrypt hash, see HashPassword
}

// Provider implements ports.IdentityProvider for local development.
// Sessions live in memory and end with the process.
type Provider struct {
	identity domainauth.Identity
	hash     []byte

	mu       sync.Mutex
	signedIn bool
	subs     listeners.Set
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.PasswordHash == "" {
		return nil, errors.New("dev auth: PasswordHash is required")
	}
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, errors.New("dev auth: PasswordHash is not a bcrypt hash")
	}
	identity := domainauth.Identity{
		ID:    cfg.UserID,
		Email: strings.ToLower(cfg.Email),
	}
	if cfg.DisplayName != "" {
		name := cfg.DisplayName
		identity.DisplayName = &name
	}
	return &Provider{identity: identity, hash: []byte(cfg.PasswordHash)}, nil
}

// HashPassword returns a bcrypt hash suitable for Config.PasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (domainauth.Identity, error) {
	if !strings.EqualFold(strings.TrimSpace(email), p.identity.Email) {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(p.hash, []byte(password)); err != nil {
		return domainauth.Identity{}, domainauth.ErrInvalidCredentials
	}
	p.set(true)
	return p.identity, nil
}

func (p *Provider) GetUser(_ context.Context) (*domainauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.signedIn {
		return nil, nil
	}
	id := p.identity
	return &id, nil
}

func (p *Provider) SignOut(_ context.Context) error {
	p.set(false)
	return nil
}

func (p *Provider) Subscribe(fn ports.IdentityListener) func() {
	return p.subs.Add(fn)
}

func (p *Provider) set(signedIn bool) {
	p.mu.Lock()
	changed := p.signedIn != signedIn
	p.signedIn = signedIn
	p.mu.Unlock()
	if !changed {
		return
	}
	if signedIn {
		id := p.identity
		p.subs.Publish(&id)
		return
	}
	p.subs.Publish(nil)
}
