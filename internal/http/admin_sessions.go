package httpx

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	"github.com/target/cse-console/internal/service"
	"github.com/target/cse-console/internal/session"
)

// SessionNotifier is the subscription side of the session store.
type SessionNotifier interface {
	Subscribe(fn session.Listener) func()
}

// AdminSessions holds the access directories opened by the admin flow, keyed by a random
// flow id carried in a cookie. Any change of the signed-in identity discards them all.
type AdminSessions struct {
	mu     sync.Mutex
	flows  map[string]*service.AccessDirectory
	unsub  func()
	logger *slog.Logger
}

// NewAdminSessions creates the registry and subscribes it to identity changes.
func NewAdminSessions(src SessionNotifier, logger *slog.Logger) *AdminSessions {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AdminSessions{flows: make(map[string]*service.AccessDirectory), logger: logger}
	if src != nil {
		a.unsub = src.Subscribe(func(s domainauth.Session) {
			if n := a.DiscardAll(); n > 0 {
				a.logger.Info("admin sessions discarded on identity change", "count", n, "signed_in", s.Authenticated())
			}
		})
	}
	return a
}

// Put registers dir and returns its flow id.
func (a *AdminSessions) Put(dir *service.AccessDirectory) string {
	id := uuid.NewString()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flows[id] = dir
	return id
}

// Get returns the directory for id.
func (a *AdminSessions) Get(id string) (*service.AccessDirectory, bool) {
	if id == "" {
		return nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	dir, ok := a.flows[id]
	return dir, ok
}

// Discard closes and forgets the directory for id.
func (a *AdminSessions) Discard(id string) {
	a.mu.Lock()
	dir, ok := a.flows[id]
	delete(a.flows, id)
	a.mu.Unlock()
	if ok {
		dir.Close()
	}
}

// DiscardAll closes every open directory and returns how many there were.
func (a *AdminSessions) DiscardAll() int {
	a.mu.Lock()
	flows := a.flows
	a.flows = make(map[string]*service.AccessDirectory)
	a.mu.Unlock()
	for _, dir := range flows {
		dir.Close()
	}
	return len(flows)
}

// Len returns the number of open directories.
func (a *AdminSessions) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.flows)
}

// Close unsubscribes from the session store and discards every directory.
func (a *AdminSessions) Close() {
	if a.unsub != nil {
		a.unsub()
	}
	a.DiscardAll()
}
