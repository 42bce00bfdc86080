// Package listeners provides the subscriber list identity providers use for change notifications.
package listeners

import (
	"sort"
	"sync"

	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/ports"
)

// Set is a goroutine-safe list of identity listeners. The zero value is ready to use.
type Set struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]ports.IdentityListener
}

// Add registers fn and returns a func that removes it. Calling the func twice is harmless.
func (s *Set) Add(fn ports.IdentityListener) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]ports.IdentityListener)
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

// Publish calls every registered listener in registration order.
// Listeners run outside the lock so they may deregister themselves.
func (s *Set) Publish(identity *domainauth.Identity) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	fns := make([]ports.IdentityListener, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.fns[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

// Len returns the number of registered listeners.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}
