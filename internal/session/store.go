// Package session holds the process-wide session state: the current identity and
// whether it has been resolved yet. It has an explicit Initialize/Close lifecycle and
// an explicit subscriber list; nothing is registered at import time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by Initialize after Close.
var ErrClosed = errors.New("session store closed")

// Listener observes session changes. It runs synchronously in the goroutine that
// mutated the store and must not call back into the store's mutators.
type Listener func(domainauth.Session)

// Options groups optional dependencies for Store.
type Options struct {
	Logger *slog.Logger
}

type listenerEntry struct {
	id int
	fn Listener
}

// Store is the single writer-guarded session holder.
// Updates are applied in the order their results arrive; a later update always wins.
type Store struct {
	provider ports.IdentityProvider
	logger   *slog.Logger

	// notifyMu serializes apply+notify so listeners observe updates in apply order.
	notifyMu sync.Mutex

	mu          sync.RWMutex
	state       domainauth.Session
	closed      bool
	unsubscribe func()
	listeners   []listenerEntry
	nextID      int

	lookups singleflight.Group
}

// New constructs a Store in the loading state. Call Initialize to resolve it.
func New(provider ports.IdentityProvider, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		provider: provider,
		logger:   logger,
		state:    domainauth.Session{Loading: true},
	}
}

// Initialize registers for provider change notifications and resolves the current
// provider session. The store leaves the loading state whatever the outcome; a
// transport failure is reported as domainauth.ErrNetwork.
//
// Concurrent callers share one provider lookup. The lookup runs detached from any single
// caller's cancellation and applies its own result, so a caller that gives up early
// neither fails the others nor leaves the store loading.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.unsubscribe == nil {
		s.unsubscribe = s.provider.Subscribe(s.OnIdentityChanged)
	}
	s.mu.Unlock()

	lookupCtx := context.WithoutCancel(ctx)
	ch := s.lookups.DoChan("get_user", func() (any, error) {
		identity, err := s.provider.GetUser(lookupCtx)
		if err != nil {
			s.resolveLoading()
			s.logger.WarnContext(lookupCtx, "session lookup failed", "error", err)
			return nil, err
		}
		s.apply(identity)
		return identity, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: get user: %w", domainauth.ErrNetwork, res.Err)
		}
		return nil
	}
}

// OnIdentityChanged replaces the stored identity atomically. Nil means signed out.
// It is the callback registered with the provider and the write path of the auth gateway.
func (s *Store) OnIdentityChanged(identity *domainauth.Identity) {
	s.apply(identity)
}

// Snapshot returns the current session value.
func (s *Store) Snapshot() domainauth.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn and returns a func that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { s.removeListener(id) })
	}
}

// Close deregisters from the provider and drops every listener. Later updates are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.listeners = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *Store) removeListener(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Store) apply(identity *domainauth.Identity) {
	var stored *domainauth.Identity
	if identity != nil {
		cp := *identity
		stored = &cp
	}
	s.update(func(domainauth.Session) domainauth.Session {
		return domainauth.Session{Identity: stored, Loading: false}
	})
}

func (s *Store) resolveLoading() {
	s.update(func(cur domainauth.Session) domainauth.Session {
		cur.Loading = false
		return cur
	})
}

func (s *Store) update(next func(domainauth.Session) domainauth.Session) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = next(prev)
	cur := s.state
	changed := prev.Loading != cur.Loading || !domainauth.SameAs(prev.Identity, cur.Identity)
	fns := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		fns = append(fns, l.fn)
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn(cur)
	}
}
