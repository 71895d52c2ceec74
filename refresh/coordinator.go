// Package refresh serializes token refresh. At most one refresh call is in
// flight system-wide; every concurrent caller is parked on a queue and served
// the outcome of that single call. A failed refresh always ends the session:
// there is no stale token worth keeping once the server has rejected it.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage/fastcache"
	"github.com/jrsteele09/go-auth-client/storage/secure"
	"github.com/jrsteele09/go-auth-client/token"
)

// ErrNoStoredToken is returned when a refresh is requested but the encrypted
// store holds no token to present.
var ErrNoStoredToken = errors.New("refresh: no stored token")

type outcome struct {
	token string
	err   error
}

// Coordinator is the single-flight refresh manager. The token presented to
// the server is always read from the encrypted store, never from the runtime
// session store, so refresh stays correct immediately after a process restart
// when the runtime token field is still empty.
type Coordinator struct {
	backend backend.Client
	secure  *secure.Store
	cache   *fastcache.Cache
	runtime *session.Store
	logger  zerolog.Logger
	nowFunc func() time.Time

	mu         sync.Mutex
	inFlight   bool
	generation uint64
	waiters    []chan outcome
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithNowFunc sets the now function (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowFunc = now
	}
}

// NewCoordinator creates a Coordinator with its required dependencies.
func NewCoordinator(backendClient backend.Client, secureStore *secure.Store, cache *fastcache.Cache, runtime *session.Store, options ...Option) (*Coordinator, error) {
	if backendClient == nil {
		return nil, pkgerrors.New("[NewCoordinator] backend client is required")
	}
	if secureStore == nil {
		return nil, pkgerrors.New("[NewCoordinator] secure store is required")
	}
	if cache == nil {
		return nil, pkgerrors.New("[NewCoordinator] fast cache is required")
	}
	if runtime == nil {
		return nil, pkgerrors.New("[NewCoordinator] runtime session store is required")
	}

	c := &Coordinator{
		backend: backendClient,
		secure:  secureStore,
		cache:   cache,
		runtime: runtime,
		logger:  zerolog.Nop(),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Refresh returns a fresh token, joining the in-flight refresh when one
// exists. On success the new token has already been persisted to the
// encrypted store and swapped into the runtime session store before any
// caller sees it. On failure the coordinator has already wiped the stored
// session and emitted the logout transition; callers only surface the error.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.inFlight {
		ch := make(chan outcome, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case out := <-ch:
			return out.token, out.err
		case <-ctx.Done():
			// Either the caller gave up or Reset abandoned the queue
			// during logout; the in-flight call itself is unaffected.
			return "", ctx.Err()
		}
	}
	c.inFlight = true
	gen := c.generation
	c.mu.Unlock()

	out := c.perform(ctx)

	c.mu.Lock()
	if c.generation != gen {
		// Reset ran while the call was in flight: bookkeeping is already
		// cleared and the queued callers were abandoned on purpose. Any
		// token the call wrote is simply irrelevant now.
		c.mu.Unlock()
		return out.token, out.err
	}
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- out
	}
	return out.token, out.err
}

// Reset forcibly clears the in-flight flag and the waiter queue without
// resolving or rejecting anything. Only the logout path calls this: its
// callers no longer care about pending refreshes, and their contexts end
// with the session.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	c.waiters = nil
	c.generation++
}

func (c *Coordinator) perform(ctx context.Context) outcome {
	current := c.secure.Get(ctx, secure.KeyToken)
	if current == "" {
		c.endSession(ctx)
		return outcome{err: ErrNoStoredToken}
	}

	result, err := c.backend.Refresh(ctx, current)
	if err != nil {
		c.logger.Warn().Err(err).Msg("token refresh failed, ending session")
		c.endSession(ctx)
		return outcome{err: err}
	}

	if err := c.secure.Set(ctx, secure.KeyToken, result.Token); err != nil {
		// A rotated token that cannot be persisted leaves the durable
		// stores pointing at a dead credential; treat it like a failed
		// refresh so the next start is a clean sign-in.
		c.logger.Error().Err(err).Msg("persisting refreshed token failed, ending session")
		c.endSession(ctx)
		return outcome{err: err}
	}

	expiry := token.ExpiryOf(result.Token, result.ExpiresIn, c.nowFunc())
	c.runtime.ReplaceToken(result.Token, expiry)
	c.logger.Debug().Time("token_expiry", expiry).Msg("token refreshed")
	return outcome{token: result.Token}
}

// endSession wipes the durable session and clears the runtime store. The
// biometric preference is a standing user setting and is left alone.
func (c *Coordinator) endSession(ctx context.Context) {
	c.secure.Delete(ctx, secure.KeyToken)
	c.cache.Delete(fastcache.KeyUser)
	c.cache.Delete(fastcache.KeyTenant)
	c.cache.Delete(fastcache.KeyPermissions)
	if err := c.cache.SetBool(fastcache.KeySessionGate, false); err != nil {
		c.logger.Warn().Err(err).Msg("clearing session gate failed")
	}
	c.runtime.CommitLogout()
}
