package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/target/cse-console/internal/ports"
)

// TokenStore implements ports.TokenStore in memory. It keeps at most one token.
type TokenStore struct {
	mu  sync.Mutex
	tok *ports.Token
}

// NewTokenStore creates an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Save(_ context.Context, tok ports.Token) error {
	if tok.AccessToken == "" {
		return errors.New("access token cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = &tok
	return nil
}

func (s *TokenStore) Load(_ context.Context) (*ports.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return nil, nil
	}
	cp := *s.tok
	return &cp, nil
}

func (s *TokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = nil
	return nil
}
