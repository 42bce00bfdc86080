package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/cse-console/internal/domain/auth"
	mocks "github.com/target/cse-console/internal/mocks/auth"
)

func identity(id string) *domainauth.Identity {
	return &domainauth.Identity{ID: id, Email: id + "@x.com"}
}

func TestStore_StartsLoading(t *testing.T) {
	store := New(mocks.NewMockIdentityProvider(nil), Options{})
	snap := store.Snapshot()
	assert.True(t, snap.Loading)
	assert.Nil(t, snap.Identity)
}

func TestStore_Initialize_NoSession(t *testing.T) {
	provider := mocks.NewMockIdentityProvider(nil)
	store := New(provider, Options{})
	defer store.Close()

	require.NoError(t, store.Initialize(context.Background()))

	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Identity)
	assert.Equal(t, 1, provider.Subscribers())
}

func TestStore_Initialize_ExistingSession(t *testing.T) {
	provider := &mocks.MockIdentityProvider{
		GetUserFunc: func(context.Context) (*domainauth.Identity, error) { return identity("u1"), nil },
	}
	store := New(provider, Options{})
	defer store.Close()

	require.NoError(t, store.Initialize(context.Background()))

	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "u1", snap.Identity.ID)
}

func TestStore_Initialize_TransportFailureStillResolves(t *testing.T) {
	provider := &mocks.MockIdentityProvider{
		GetUserFunc: func(context.Context) (*domainauth.Identity, error) { return nil, errors.New("dial tcp: refused") },
	}
	store := New(provider, Options{})
	defer store.Close()

	err := store.Initialize(context.Background())
	require.ErrorIs(t, err, domainauth.ErrNetwork)
	assert.False(t, store.Snapshot().Loading)
	assert.Nil(t, store.Snapshot().Identity)
}

func TestStore_Initialize_CanceledCallerDoesNotAbortLookup(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var (
		calls     atomic.Int32
		lookupErr atomic.Value
	)
	provider := &mocks.MockIdentityProvider{
		GetUserFunc: func(ctx context.Context) (*domainauth.Identity, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			lookupErr.Store(fmt.Sprint(ctx.Err()))
			return identity("u1"), nil
		},
	}
	store := New(provider, Options{})
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- store.Initialize(ctx) }()
	<-started

	cancel()
	err := <-firstErr
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domainauth.ErrNetwork)

	close(release)
	require.Eventually(t, func() bool { return !store.Snapshot().Loading }, time.Second, 5*time.Millisecond)
	require.NotNil(t, store.Snapshot().Identity)
	assert.Equal(t, "u1", store.Snapshot().Identity.ID)
	assert.Equal(t, "<nil>", lookupErr.Load())

	require.NoError(t, store.Initialize(context.Background()))
}

func TestStore_ProviderChangeClearsLoading(t *testing.T) {
	provider := mocks.NewMockIdentityProvider(nil)
	store := New(provider, Options{})
	defer store.Close()

	// A change event before the first lookup resolves must not leave loading stuck.
	store.OnIdentityChanged(identity("u1"))
	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.Identity)
}

func TestStore_LastResolvedWins(t *testing.T) {
	provider := mocks.NewMockIdentityProvider(nil)
	store := New(provider, Options{})
	defer store.Close()
	require.NoError(t, store.Initialize(context.Background()))

	sequence := []*domainauth.Identity{identity("a"), nil, identity("b"), identity("c"), nil, identity("d")}
	for _, id := range sequence {
		provider.Emit(id)
		got := store.Snapshot().Identity
		if id == nil {
			assert.Nil(t, got)
		} else {
			require.NotNil(t, got)
			assert.Equal(t, id.ID, got.ID)
		}
	}
}

func TestStore_ConcurrentUpdatesEndOnLastApplied(t *testing.T) {
	store := New(mocks.NewMockIdentityProvider(nil), Options{})
	defer store.Close()

	var (
		mu      sync.Mutex
		applied []string
	)
	store.Subscribe(func(s domainauth.Session) {
		mu.Lock()
		defer mu.Unlock()
		if s.Identity == nil {
			applied = append(applied, "")
			return
		}
		applied = append(applied, s.Identity.ID)
	})

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			store.OnIdentityChanged(identity(id))
		}(id)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, applied)
	last := applied[len(applied)-1]
	require.NotNil(t, store.Snapshot().Identity)
	assert.Equal(t, last, store.Snapshot().Identity.ID)
}

func TestStore_NotifiesOnlyOnChange(t *testing.T) {
	store := New(mocks.NewMockIdentityProvider(nil), Options{})
	defer store.Close()

	calls := 0
	store.Subscribe(func(domainauth.Session) { calls++ })

	store.OnIdentityChanged(identity("u1"))
	store.OnIdentityChanged(identity("u1"))
	store.OnIdentityChanged(nil)
	store.OnIdentityChanged(nil)

	assert.Equal(t, 2, calls)
}

func TestStore_ListenersRunInOrderSynchronously(t *testing.T) {
	store := New(mocks.NewMockIdentityProvider(nil), Options{})
	defer store.Close()

	var order []string
	store.Subscribe(func(domainauth.Session) { order = append(order, "first") })
	unsub := store.Subscribe(func(domainauth.Session) { order = append(order, "second") })
	store.Subscribe(func(domainauth.Session) { order = append(order, "third") })

	store.OnIdentityChanged(identity("u1"))
	assert.Equal(t, []string{"first", "second", "third"}, order)

	unsub()
	order = nil
	store.OnIdentityChanged(nil)
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestStore_CloseDeregistersAndIgnoresLateUpdates(t *testing.T) {
	provider := mocks.NewMockIdentityProvider(nil)
	store := New(provider, Options{})
	require.NoError(t, store.Initialize(context.Background()))
	require.Equal(t, 1, provider.Subscribers())

	calls := 0
	store.Subscribe(func(domainauth.Session) { calls++ })

	store.Close()
	store.Close()
	assert.Equal(t, 0, provider.Subscribers())

	provider.Emit(identity("late"))
	store.OnIdentityChanged(identity("late"))
	assert.Nil(t, store.Snapshot().Identity)
	assert.Equal(t, 0, calls)

	require.ErrorIs(t, store.Initialize(context.Background()), ErrClosed)
}

func TestStore_StoresCopyOfIdentity(t *testing.T) {
	store := New(mocks.NewMockIdentityProvider(nil), Options{})
	defer store.Close()

	id := identity("u1")
	store.OnIdentityChanged(id)
	id.Email = "mutated@x.com"

	assert.Equal(t, "u1@x.com", store.Snapshot().Identity.Email)
}
