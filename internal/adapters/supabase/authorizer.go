package supabase

import (
	"context"
	"fmt"
	"net/http"

	domainauth "github.com/target/cse-console/internal/domain/auth"
)

// Authorizer calls the has_role database function through PostgREST.
type Authorizer struct {
	client *Client
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(client *Client) *Authorizer {
	return &Authorizer{client: client}
}

func (a *Authorizer) HasRole(ctx context.Context, role domainauth.Role, userID string) (bool, error) {
	var ok bool
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/rpc/has_role",
		body:   map[string]string{"_role": string(role), "_user_id": userID},
	}, &ok)
	if err != nil {
		switch statusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return false, fmt.Errorf("%w: %w", domainauth.ErrRoleUnauthorized, err)
		}
		return false, fmt.Errorf("rpc has_role: %w", err)
	}
	return ok, nil
}
