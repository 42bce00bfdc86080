package auth

// Package auth contains domain-level types for identities, sessions and access control.
// It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
)

// Role represents a coarse authorization label assigned outside this application.
// Keep string form for easy persistence and RPC arguments.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleCSEExpert Role = "cse_expert"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleCSEExpert:
		return true
	default:
		return false
	}
}

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q (valid options: user, admin, cse_expert)", s)
	}
	return r, nil
}

// AccessLevel is the admin-assigned visibility tier of an identity. It is distinct from Role.
type AccessLevel string

const (
	AccessFull    AccessLevel = "full"
	AccessLimited AccessLevel = "limited"
	AccessNone    AccessLevel = "none"
)

// Valid reports whether l is one of the three access levels.
func (l AccessLevel) Valid() bool {
	switch l {
	case AccessFull, AccessLimited, AccessNone:
		return true
	default:
		return false
	}
}

// ParseAccessLevel converts s into an AccessLevel.
func ParseAccessLevel(s string) (AccessLevel, error) {
	l := AccessLevel(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("invalid access level: %q (valid options: full, limited, none)", s)
	}
	return l, nil
}

// Identity represents the authenticated principal returned by the identity provider.
// Adapters map provider-specific payloads into this shape.
type Identity struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name,omitempty"`
}

// Name returns the display name, falling back to the email.
func (i Identity) Name() string {
	if i.DisplayName != nil && *i.DisplayName != "" {
		return *i.DisplayName
	}
	return i.Email
}

// SameAs reports whether two identity references describe the same record.
func SameAs(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Email != b.Email {
		return false
	}
	if a.DisplayName == nil || b.DisplayName == nil {
		return a.DisplayName == b.DisplayName
	}
	return *a.DisplayName == *b.DisplayName
}

// Session is the client-held record of the current identity and its resolution state.
// Loading is true only until the first resolution after process start.
type Session struct {
	Identity *Identity `json:"identity,omitempty"`
	Loading  bool      `json:"loading"`
}

// Authenticated reports whether the session carries an identity.
func (s Session) Authenticated() bool { return s.Identity != nil }

// ManagedIdentity is the profile projection shown in the access-level directory.
type ManagedIdentity struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name,omitempty"`
}

// AccessMap maps identity ids to access levels. A missing key means AccessNone.
type AccessMap map[string]AccessLevel

// Get returns the level for id, or AccessNone when no record exists.
func (m AccessMap) Get(id string) AccessLevel {
	if l, ok := m[id]; ok && l.Valid() {
		return l
	}
	return AccessNone
}

// Clone returns an independent copy of m.
func (m AccessMap) Clone() AccessMap {
	out := make(AccessMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DecisionKind enumerates route guard outcomes.
type DecisionKind string

const (
	DecisionAllow                  DecisionKind = "allow"
	DecisionRedirect               DecisionKind = "redirect"
	DecisionShowLoadingPlaceholder DecisionKind = "loading"
)

// LoginPath is where unauthenticated navigation is sent.
const LoginPath = "/login"

// Decision is the result of a route guard evaluation. Target is set for redirects only.
type Decision struct {
	Kind   DecisionKind
	Target string
}

// Allow permits navigation.
func Allow() Decision { return Decision{Kind: DecisionAllow} }

// Redirect sends navigation to target.
func Redirect(target string) Decision { return Decision{Kind: DecisionRedirect, Target: target} }

// ShowLoadingPlaceholder neither allows nor redirects.
func ShowLoadingPlaceholder() Decision { return Decision{Kind: DecisionShowLoadingPlaceholder} }
