package redis

// Package redis provides Redis-based adapters for the console.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/cse-console/internal/ports"
)

const (
	defaultTokenKey = "cse-console:token"
	defaultTokenTTL = 7 * 24 * time.Hour
)

// TokenStore is a Redis-based store for the console's provider session.
// The key outlives the access token so the refresh token can still be used after a restart.
type TokenStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// TokenStoreOptions configures a TokenStore. Zero values select defaults.
type TokenStoreOptions struct {
	Key string
	TTL time.Duration
}

// NewTokenStore creates a new Redis-based token store.
func NewTokenStore(client redis.UniversalClient, opts TokenStoreOptions) *TokenStore {
	key := opts.Key
	if key == "" {
		key = defaultTokenKey
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenStore{client: client, key: key, ttl: ttl}
}

func (s *TokenStore) Save(ctx context.Context, tok ports.Token) error {
	if tok.AccessToken == "" {
		return errors.New("access token cannot be empty")
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	ttl := s.ttl
	if tok.RefreshToken == "" {
		// Nothing can renew it, so it lives only as long as the access token.
		ttl = time.Until(tok.ExpiresAt)
		if ttl <= 0 {
			return errors.New("token is expired")
		}
	}

	return s.client.Set(ctx, s.key, data, ttl).Err()
}

func (s *TokenStore) Load(ctx context.Context) (*ports.Token, error) {
	data, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var tok ports.Token
	if unmarshalErr := json.Unmarshal([]byte(data), &tok); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal token: %w", unmarshalErr)
	}
	return &tok, nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
