package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	apperrors "github.com/target/cse-console/internal/errors"
)

// AccessStore reads profiles and access levels through PostgREST and writes levels through
// the set_user_access function. Row-level security decides what the caller may see.
type AccessStore struct {
	client *Client
}

// NewAccessStore constructs an AccessStore.
func NewAccessStore(client *Client) *AccessStore {
	return &AccessStore{client: client}
}

type profileRow struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
}

type accessRow struct {
	UserID      string `json:"user_id"`
	AccessLevel string `json:"access_level"`
}

func (s *AccessStore) ListProfiles(ctx context.Context) ([]domainauth.ManagedIdentity, error) {
	var rows []profileRow
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/profiles",
		query:  url.Values{"select": {"id,email,full_name"}, "order": {"email.asc"}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	out := make([]domainauth.ManagedIdentity, 0, len(rows))
	for _, r := range rows {
		out = append(out, domainauth.ManagedIdentity{ID: r.ID, Email: r.Email, DisplayName: r.FullName})
	}
	return out, nil
}

// ListAccessLevels returns every readable row. Rows with an unknown level are skipped.
func (s *AccessStore) ListAccessLevels(ctx context.Context) (domainauth.AccessMap, error) {
	var rows []accessRow
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/user_access",
		query:  url.Values{"select": {"user_id,access_level"}},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("select user_access: %w", err)
	}
	out := make(domainauth.AccessMap, len(rows))
	for _, r := range rows {
		level, parseErr := domainauth.ParseAccessLevel(r.AccessLevel)
		if parseErr != nil {
			continue
		}
		out[r.UserID] = level
	}
	return out, nil
}

func (s *AccessStore) UpsertAccessLevel(ctx context.Context, userID string, level domainauth.AccessLevel) error {
	if userID == "" {
		return errors.New("user id is required")
	}
	err := s.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/rpc/set_user_access",
		body:   map[string]string{"_user_id": userID, "_access_level": string(level)},
	}, nil)
	if err != nil {
		switch statusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperrors.Wrap(err, apperrors.ErrCodeForbidden, "set_user_access refused")
		}
		return fmt.Errorf("rpc set_user_access: %w", err)
	}
	return nil
}

// Ping reads at most one profile id.
func (s *AccessStore) Ping(ctx context.Context) error {
	var rows []struct {
		ID string `json:"id"`
	}
	err := s.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/profiles",
		query:  url.Values{"select": {"id"}, "limit": {"1"}},
	}, &rows)
	if err != nil {
		return fmt.Errorf("ping profiles: %w", err)
	}
	return nil
}
