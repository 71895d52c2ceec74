// Package engine orchestrates the session lifecycle across the three stores:
// the encrypted secure store, the fast cache, and the runtime session store.
// It is the sole writer of session data; every operation (login, restore,
// biometric login, logout) is an explicit write/read protocol that either
// completes or rolls the world back to a consistent signed-out state.
package engine

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/biometric"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/storage/fastcache"
	"github.com/jrsteele09/go-auth-client/storage/secure"
)

// User-facing messages emitted through the runtime store and the notifier.
const (
	MsgLoginFailed     = "Unable to sign in. Please try again."
	MsgStorageError    = "storage error"
	MsgSaveLoginFailed = "Failed to save login data. Please try again."
	MsgSessionExpired  = "Your session has expired. Please sign in again."
	MsgBiometricSetup  = "Biometric sign-in could not be enabled right now. You can turn it on later in settings."
)

// NoticeKind classifies a user-facing notice.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeError
)

// Notice is a user-facing message that is not part of the session state
// itself (toasts, banners). Cancelling a biometric prompt never produces one.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Notifier receives user-facing notices. The default discards them.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

type noopNotifier struct{}

func (noopNotifier) Notify(Notice) {}

// Invalidator clears externally cached server-state data when a session ends.
// Hard logout discards everything (the identity is gone); soft logout only
// discards the restore check's cached result.
type Invalidator interface {
	InvalidateAll()
	InvalidateRestore()
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateAll()     {}
func (noopInvalidator) InvalidateRestore() {}

// ConsentPrompt asks the user whether to enable biometric sign-in after a
// successful password login. The default declines, so biometrics are never
// enabled without an explicit host-provided prompt.
type ConsentPrompt func(ctx context.Context) bool

// Engine is the session consistency engine.
type Engine struct {
	backend     backend.Client
	secure      *secure.Store
	cache       *fastcache.Cache
	runtime     *session.Store
	refresher   *refresh.Coordinator
	prover      biometric.Prover
	notifier    Notifier
	invalidator Invalidator
	consent     ConsentPrompt
	logger      zerolog.Logger
	nowFunc     func() time.Time

	restoreMu      sync.Mutex
	restoreSettled bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithNowFunc sets the now function (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(e *Engine) {
		e.nowFunc = now
	}
}

// WithNotifier sets the receiver for user-facing notices.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithInvalidator sets the server-state cache invalidation hook.
func WithInvalidator(inv Invalidator) Option {
	return func(e *Engine) {
		e.invalidator = inv
	}
}

// WithConsentPrompt sets the prompt asking the user to enable biometric
// sign-in after login.
func WithConsentPrompt(prompt ConsentPrompt) Option {
	return func(e *Engine) {
		e.consent = prompt
	}
}

// New creates an Engine with its required collaborators.
func New(
	backendClient backend.Client,
	secureStore *secure.Store,
	cache *fastcache.Cache,
	runtime *session.Store,
	refresher *refresh.Coordinator,
	prover biometric.Prover,
	options ...Option,
) (*Engine, error) {
	if backendClient == nil {
		return nil, pkgerrors.New("[engine.New] backend client is required")
	}
	if secureStore == nil {
		return nil, pkgerrors.New("[engine.New] secure store is required")
	}
	if cache == nil {
		return nil, pkgerrors.New("[engine.New] fast cache is required")
	}
	if runtime == nil {
		return nil, pkgerrors.New("[engine.New] runtime session store is required")
	}
	if refresher == nil {
		return nil, pkgerrors.New("[engine.New] refresh coordinator is required")
	}
	if prover == nil {
		return nil, pkgerrors.New("[engine.New] biometric prover is required")
	}

	e := &Engine{
		backend:     backendClient,
		secure:      secureStore,
		cache:       cache,
		runtime:     runtime,
		refresher:   refresher,
		prover:      prover,
		notifier:    noopNotifier{},
		invalidator: noopInvalidator{},
		consent:     func(context.Context) bool { return false },
		logger:      zerolog.Nop(),
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// readIdentity assembles the identity snapshot from the fast cache. Missing
// or corrupt entries simply leave their field nil; the caller decides whether
// an incomplete identity is acceptable.
func (e *Engine) readIdentity() *identity.Identity {
	id := &identity.Identity{}
	var user identity.User
	if e.cache.GetObject(fastcache.KeyUser, &user) {
		id.User = &user
	}
	var tenant identity.Tenant
	if e.cache.GetObject(fastcache.KeyTenant, &tenant) {
		id.Tenant = &tenant
	}
	var perms []identity.Permission
	if e.cache.GetObject(fastcache.KeyPermissions, &perms) {
		id.Permissions = perms
	}
	return id
}

// wipeSession removes all durable session data from both stores, preserving
// the biometric preference, which has its own lifecycle.
func (e *Engine) wipeSession(ctx context.Context) {
	e.secure.Delete(ctx, secure.KeyToken)
	e.secure.Delete(ctx, secure.KeyUserEmail)
	e.cache.Delete(fastcache.KeyUser)
	e.cache.Delete(fastcache.KeyTenant)
	e.cache.Delete(fastcache.KeyPermissions)
	if err := e.cache.SetBool(fastcache.KeySessionGate, false); err != nil {
		e.logger.Warn().Err(err).Msg("clearing session gate failed")
	}
}

// StoredEmail returns the last logged-in user's email from the encrypted
// store, for pre-filling the sign-in form. Empty when absent.
func (e *Engine) StoredEmail(ctx context.Context) string {
	return e.secure.Get(ctx, secure.KeyUserEmail)
}

// BiometricPreference returns the durable biometric preference flag.
func (e *Engine) BiometricPreference(ctx context.Context) bool {
	return e.secure.GetBool(ctx, secure.KeyBiometricPreference)
}

// DisableBiometrics clears the durable biometric preference. This is the
// explicit full-reset path; no logout variant ever touches the flag.
func (e *Engine) DisableBiometrics(ctx context.Context) error {
	if err := e.secure.SetBool(ctx, secure.KeyBiometricPreference, false); err != nil {
		return err
	}
	e.runtime.SetBiometricPreference(false)
	return nil
}
