// Package memstore holds in-process stores: an access store for local development and a
// token store for short-lived processes. Nothing survives the process.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	domainauth "github.com/target/cse-console/internal/domain/auth"
)

// ErrUnknownProfile is returned when writing a level for an id with no profile.
var ErrUnknownProfile = errors.New("profile does not exist")

// Store implements ports.AccessStore in memory.
type Store struct {
	mu       sync.RWMutex
	profiles []domainauth.ManagedIdentity
	levels   domainauth.AccessMap
}

// New creates a store holding profiles, sorted by email.
func New(profiles ...domainauth.ManagedIdentity) *Store {
	cp := append([]domainauth.ManagedIdentity(nil), profiles...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Email < cp[j].Email })
	return &Store{profiles: cp, levels: make(domainauth.AccessMap)}
}

// ParseProfiles parses "id=email|Full Name,id=email" into profiles.
func ParseProfiles(s string) ([]domainauth.ManagedIdentity, error) {
	var out []domainauth.ManagedIdentity
	seen := make(map[string]bool)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, rest, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		email, name, _ := strings.Cut(rest, "|")
		email = strings.ToLower(strings.TrimSpace(email))
		if !ok || id == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("invalid profile %q: want id=email|name", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate profile id %q", id)
		}
		seen[id] = true
		p := domainauth.ManagedIdentity{ID: id, Email: email}
		if name = strings.TrimSpace(name); name != "" {
			p.DisplayName = &name
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ListProfiles(context.Context) ([]domainauth.ManagedIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domainauth.ManagedIdentity(nil), s.profiles...), nil
}

func (s *Store) ListAccessLevels(context.Context) (domainauth.AccessMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levels.Clone(), nil
}

func (s *Store) UpsertAccessLevel(_ context.Context, userID string, level domainauth.AccessLevel) error {
	if !level.Valid() {
		return fmt.Errorf("invalid access level %q", level)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.ID == userID {
			s.levels[userID] = level
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownProfile, userID)
}

func (s *Store) Ping(context.Context) error { return nil }
