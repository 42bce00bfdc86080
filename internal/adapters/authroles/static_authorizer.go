package authroles

import (
	"context"
	"fmt"
	"strings"

	domainauth "github.com/target/cse-console/internal/domain/auth"
)

// StaticAuthorizer answers role checks from a fixed assignment table keyed by user id.
// Used with the dev identity provider, where no remote authorization function exists.
type StaticAuthorizer struct {
	assignments map[string][]domainauth.Role
}

// NewStaticAuthorizer builds an authorizer from an assignment table.
func NewStaticAuthorizer(assignments map[string][]domainauth.Role) *StaticAuthorizer {
	cp := make(map[string][]domainauth.Role, len(assignments))
	for id, roles := range assignments {
		cp[id] = append([]domainauth.Role(nil), roles...)
	}
	return &StaticAuthorizer{assignments: cp}
}

// ParseAssignments parses "id=role|role,id=role" into an assignment table.
func ParseAssignments(s string) (map[string][]domainauth.Role, error) {
	out := make(map[string][]domainauth.Role)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, list, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid role assignment %q: want id=role|role", entry)
		}
		for _, raw := range strings.Split(list, "|") {
			role, err := domainauth.ParseRole(raw)
			if err != nil {
				return nil, fmt.Errorf("role assignment for %q: %w", id, err)
			}
			out[id] = append(out[id], role)
		}
	}
	return out, nil
}

func (a *StaticAuthorizer) HasRole(_ context.Context, role domainauth.Role, userID string) (bool, error) {
	if userID == "" {
		return false, domainauth.ErrRoleUnauthorized
	}
	for _, r := range a.assignments[userID] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}
