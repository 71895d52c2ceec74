// Package session holds the in-memory runtime session state. While the
// process runs this store is the live source of truth for "is there a valid
// session"; it does not survive a restart. All mutation goes through named
// transitions so every state change is auditable as an event, and each
// transition applies atomically: readers never observe a half-applied state.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/identity"
)

// State is the runtime session record. Authenticated is derived: true iff a
// token and a complete identity are simultaneously present.
type State struct {
	Token            string
	TokenExpiry      time.Time
	Identity         *identity.Identity
	Authenticated    bool
	Loading          bool
	ErrorMessage     string
	BiometricEnabled bool
}

// Store is the single-writer runtime session store. The session engine (and,
// for the token field, the refresh coordinator) are its only writers; the UI
// reads snapshots and subscribes for changes.
type Store struct {
	mu     sync.RWMutex
	state  State
	logger zerolog.Logger

	nextSubID   int
	subscribers map[int]func(State)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to record transitions.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty runtime session store.
func NewStore(options ...Option) *Store {
	s := &Store{
		logger:      zerolog.Nop(),
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn to be called with a snapshot after every transition.
// The returned cancel function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// BeginLoading marks an operation in progress and clears any previous error.
func (s *Store) BeginLoading() {
	s.apply("begin_loading", func(st *State) {
		st.Loading = true
		st.ErrorMessage = ""
	})
}

// CommitLogin installs a fresh session from a successful login.
func (s *Store) CommitLogin(id *identity.Identity, token string, expiry time.Time) {
	s.apply("commit_login", func(st *State) {
		st.Token = token
		st.TokenExpiry = expiry
		st.Identity = id
		st.Authenticated = token != "" && id.Complete()
		st.Loading = false
		st.ErrorMessage = ""
	})
}

// FailLogin records a failed login. Session fields are left unauthenticated.
func (s *Store) FailLogin(message string) {
	s.apply("fail_login", func(st *State) {
		st.Token = ""
		st.TokenExpiry = time.Time{}
		st.Identity = nil
		st.Authenticated = false
		st.Loading = false
		st.ErrorMessage = message
	})
}

// CommitRestore installs a session recovered at process start or via
// biometric login, including the durable biometric preference.
func (s *Store) CommitRestore(id *identity.Identity, token string, expiry time.Time, biometricEnabled bool) {
	s.apply("commit_restore", func(st *State) {
		st.Token = token
		st.TokenExpiry = expiry
		st.Identity = id
		st.Authenticated = token != "" && id.Complete()
		st.Loading = false
		st.ErrorMessage = ""
		st.BiometricEnabled = biometricEnabled
	})
}

// FailRestore records that no session could be restored. Not an error state:
// the user simply starts signed out.
func (s *Store) FailRestore() {
	s.apply("fail_restore", func(st *State) {
		st.Token = ""
		st.TokenExpiry = time.Time{}
		st.Identity = nil
		st.Authenticated = false
		st.Loading = false
	})
}

// CommitLogout clears the in-memory session. The biometric preference flag is
// deliberately retained: it mirrors a durable setting that outlives logout.
func (s *Store) CommitLogout() {
	s.apply("commit_logout", func(st *State) {
		st.Token = ""
		st.TokenExpiry = time.Time{}
		st.Identity = nil
		st.Authenticated = false
		st.Loading = false
		st.ErrorMessage = ""
	})
}

// ReplaceToken swaps in a refreshed token, leaving identity untouched.
func (s *Store) ReplaceToken(token string, expiry time.Time) {
	s.apply("replace_token", func(st *State) {
		st.Token = token
		st.TokenExpiry = expiry
		st.Authenticated = token != "" && st.Identity.Complete()
	})
}

// SetBiometricPreference mirrors the durable biometric preference flag.
func (s *Store) SetBiometricPreference(enabled bool) {
	s.apply("set_biometric_preference", func(st *State) {
		st.BiometricEnabled = enabled
	})
}

// ClearError clears the user-facing error message.
func (s *Store) ClearError() {
	s.apply("clear_error", func(st *State) {
		st.ErrorMessage = ""
	})
}

func (s *Store) apply(event string, mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("event", event).
		Bool("authenticated", snapshot.Authenticated).
		Bool("loading", snapshot.Loading).
		Int("token_length", len(snapshot.Token)).
		Msg("session transition")

	for _, fn := range subs {
		fn(snapshot)
	}
}
