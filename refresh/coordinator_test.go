package refresh_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/backend/backendfakes"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage/fastcache"
	"github.com/jrsteele09/go-auth-client/storage/fastcache/cachefakes"
	"github.com/jrsteele09/go-auth-client/storage/secure"
	"github.com/jrsteele09/go-auth-client/storage/secure/securefakes"
)

type fixture struct {
	coordinator   *refresh.Coordinator
	client        *backendfakes.FakeClient
	secureBackend *securefakes.FakeBackend
	cacheBackend  *cachefakes.FakeBackend
	secureStore   *secure.Store
	cache         *fastcache.Cache
	runtime       *session.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	client := backendfakes.NewFakeClient()
	secureBackend := securefakes.NewFakeBackend()
	cacheBackend := cachefakes.NewFakeBackend()

	secureStore, err := secure.New(secureBackend)
	require.NoError(t, err)
	cache, err := fastcache.New(cacheBackend)
	require.NoError(t, err)
	runtime := session.NewStore()

	coordinator, err := refresh.NewCoordinator(client, secureStore, cache, runtime)
	require.NoError(t, err)

	return &fixture{
		coordinator:   coordinator,
		client:        client,
		secureBackend: secureBackend,
		cacheBackend:  cacheBackend,
		secureStore:   secureStore,
		cache:         cache,
		runtime:       runtime,
	}
}

func (f *fixture) seedSession(t *testing.T) {
	t.Helper()
	f.secureBackend.Seed(secure.KeyToken, "t1")
	require.NoError(t, f.cache.SetObject(fastcache.KeyUser, identity.User{ID: "user-1"}))
	require.NoError(t, f.cache.SetObject(fastcache.KeyTenant, identity.Tenant{ID: "tenant-1"}))
	require.NoError(t, f.cache.SetBool(fastcache.KeySessionGate, true))
	f.runtime.CommitLogin(&identity.Identity{
		User:   &identity.User{ID: "user-1"},
		Tenant: &identity.Tenant{ID: "tenant-1"},
	}, "t1", time.Now().Add(time.Hour))
}

func TestNewCoordinatorValidatesDependencies(t *testing.T) {
	f := newFixture(t)

	_, err := refresh.NewCoordinator(nil, f.secureStore, f.cache, f.runtime)
	require.Error(t, err)
	_, err = refresh.NewCoordinator(f.client, nil, f.cache, f.runtime)
	require.Error(t, err)
	_, err = refresh.NewCoordinator(f.client, f.secureStore, nil, f.runtime)
	require.Error(t, err)
	_, err = refresh.NewCoordinator(f.client, f.secureStore, f.cache, nil)
	require.Error(t, err)
}

func TestRefreshUsesStoredTokenNotRuntime(t *testing.T) {
	f := newFixture(t)
	f.secureBackend.Seed(secure.KeyToken, "stored-token")
	// Runtime store left empty, as after a process restart.
	f.client.RefreshResult = &backend.RefreshResult{Token: "t2"}

	tok, err := f.coordinator.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "t2", tok)
	require.Equal(t, []string{"stored-token"}, f.client.RefreshCalls())
}

func TestRefreshSuccessPersistsBeforeResolving(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t)
	f.client.RefreshResult = &backend.RefreshResult{Token: "t2", ExpiresIn: 6 * time.Hour}

	tok, err := f.coordinator.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "t2", tok)

	stored, _ := f.secureBackend.Value(secure.KeyToken)
	require.Equal(t, "t2", stored)
	require.Equal(t, "t2", f.runtime.Snapshot().Token)
	require.True(t, f.runtime.Snapshot().Authenticated)
}

func TestSingleFlight(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.client.RefreshFunc = func(context.Context, string) (*backend.RefreshResult, error) {
		once.Do(func() { close(started) })
		<-release
		return &backend.RefreshResult{Token: "t2"}, nil
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	tokens := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tok, err := f.coordinator.Refresh(context.Background())
			require.NoError(t, err)
			tokens <- tok
		}()
	}

	<-started
	// Let the remaining callers reach the queue before the call resolves.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(tokens)

	require.Equal(t, 1, f.client.RefreshCallCount(), "exactly one network refresh for %d callers", n)
	for tok := range tokens {
		require.Equal(t, "t2", tok)
	}
}

func TestFailureFansOutToAllCallers(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.client.RefreshFunc = func(context.Context, string) (*backend.RefreshResult, error) {
		once.Do(func() { close(started) })
		<-release
		return nil, &backend.APIError{Status: http.StatusUnauthorized}
	}

	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	var failures int64
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.coordinator.Refresh(context.Background()); err != nil {
				atomic.AddInt64(&failures, 1)
			}
		}()
	}

	<-started
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, n, failures)
	require.Equal(t, 1, f.client.RefreshCallCount())
}

func TestFailureWipesSessionAndLogsOut(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t)
	f.client.RefreshErr = &backend.APIError{Status: http.StatusUnauthorized}

	_, err := f.coordinator.Refresh(context.Background())
	require.Error(t, err)

	_, hasToken := f.secureBackend.Value(secure.KeyToken)
	require.False(t, hasToken, "stored token must be wiped")
	require.False(t, f.cacheBackend.Has(fastcache.KeyUser))
	require.False(t, f.cacheBackend.Has(fastcache.KeyTenant))
	require.False(t, f.cache.GetBool(fastcache.KeySessionGate))
	require.False(t, f.runtime.Snapshot().Authenticated)
}

func TestNoStoredTokenFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Refresh(context.Background())
	require.ErrorIs(t, err, refresh.ErrNoStoredToken)
	require.Zero(t, f.client.RefreshCallCount())
}

func TestPersistFailureEndsSession(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t)
	f.client.RefreshResult = &backend.RefreshResult{Token: "t2"}
	f.secureBackend.SetErrs[secure.KeyToken] = errors.New("keystore full")

	_, err := f.coordinator.Refresh(context.Background())
	require.Error(t, err)
	require.False(t, f.runtime.Snapshot().Authenticated)
}

func TestResetAllowsNewFlightWhileOldInFlight(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t)

	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var calls int64
	f.client.RefreshFunc = func(context.Context, string) (*backend.RefreshResult, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			close(firstStarted)
			<-release
			return &backend.RefreshResult{Token: "late"}, nil
		}
		return &backend.RefreshResult{Token: "fresh"}, nil
	}

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = f.coordinator.Refresh(context.Background())
	}()

	<-firstStarted
	f.coordinator.Reset()

	// A new refresh after reset must issue its own network call instead of
	// joining the abandoned flight.
	tok, err := f.coordinator.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fresh", tok)
	require.EqualValues(t, 2, atomic.LoadInt64(&calls))

	close(release)
	<-firstDone
}

func TestAbandonedWaiterUnblocksViaContext(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int64
	f.client.RefreshFunc = func(context.Context, string) (*backend.RefreshResult, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return &backend.RefreshResult{Token: "t2"}, nil
	}

	go func() { _, _ = f.coordinator.Refresh(context.Background()) }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	waiterDone := make(chan error, 1)
	go func() {
		_, err := f.coordinator.Refresh(ctx)
		waiterDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	f.coordinator.Reset()

	select {
	case err := <-waiterDone:
		require.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("abandoned waiter never unblocked")
	}
	close(release)
}
