// Package secure wraps the platform's encrypted key-value capability behind
// the read/write/delete contracts the session engine depends on: speculative
// reads that never fail, all-or-nothing writes that do, and best-effort
// deletes.
package secure

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned by backends when a key has no value.
var ErrNotFound = errors.New("secure store: key not found")

// Keys used by the session engine in the encrypted store.
const (
	KeyToken               = "auth.token"
	KeyBiometricPreference = "auth.biometric_enabled"
	KeyUserEmail           = "auth.user_email"
)

// Backend is the raw encrypted store. Implementations must make Set
// all-or-nothing per key and Get side-effect free.
type Backend interface {
	// Get returns the value for key, or ErrNotFound when absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Store enforces the adapter contract over a Backend:
//   - Get never fails: any backend error is logged and reported as absence,
//     so reads are safe to issue speculatively.
//   - Set propagates errors, so callers can detect the failure and roll back.
//   - Delete never fails: deletion failure is non-critical and only logged.
type Store struct {
	backend Backend
	logger  zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed read/delete failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store over the given backend.
func New(backend Backend, options ...Option) (*Store, error) {
	if backend == nil {
		return nil, pkgerrors.New("[secure.New] backend is required")
	}
	s := &Store{
		backend: backend,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Get returns the value for key, or "" when the key is absent or the backend
// failed. Values are never logged, only keys.
func (s *Store) Get(ctx context.Context, key string) string {
	value, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("secure store read failed, treating as absent")
		}
		return ""
	}
	return value
}

// GetBool returns the boolean stored under key, false when absent or unreadable.
func (s *Store) GetBool(ctx context.Context, key string) bool {
	return s.Get(ctx, key) == "true"
}

// Set stores value under key. Errors propagate so the caller can roll back.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.backend.Set(ctx, key, value); err != nil {
		return fmt.Errorf("secure store write %q: %w", key, err)
	}
	return nil
}

// SetBool stores a boolean under key.
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	if value {
		return s.Set(ctx, key, "true")
	}
	return s.Set(ctx, key, "false")
}

// Delete removes key, logging and swallowing any backend failure.
func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("secure store delete failed")
	}
}
