// Package guard decides whether navigation to a page may proceed given the session state.
package guard

import (
	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/session"
)

// Decide is the route guard. It is pure: the same inputs always give the same decision.
//
// While the session is still loading the decision is ShowLoadingPlaceholder regardless of
// identity, so a protected page never flashes a redirect before the session resolves.
func Decide(required bool, s domainauth.Session) domainauth.Decision {
	if s.Loading {
		return domainauth.ShowLoadingPlaceholder()
	}
	if required && s.Identity == nil {
		return domainauth.Redirect(domainauth.LoginPath)
	}
	return domainauth.Allow()
}

// Router performs the navigation a decision asks for.
type Router interface {
	Apply(d domainauth.Decision)
}

// RouterFunc adapts a func to Router.
type RouterFunc func(domainauth.Decision)

// Apply calls f(d).
func (f RouterFunc) Apply(d domainauth.Decision) { f(d) }

// Source is the part of the session store the watcher reads.
type Source interface {
	Snapshot() domainauth.Session
	Subscribe(fn session.Listener) func()
}

// Watch evaluates the guard for the current session, then again synchronously on every
// session change, handing each decision to router. The returned func stops watching.
func Watch(src Source, required bool, router Router) func() {
	unsub := src.Subscribe(func(s domainauth.Session) {
		router.Apply(Decide(required, s))
	})
	router.Apply(Decide(required, src.Snapshot()))
	return unsub
}
