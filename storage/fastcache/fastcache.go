// Package fastcache wraps the platform's fast unencrypted key-value store.
// All calls are synchronous. Reads self-heal: a value that fails to decode is
// deleted and reported as absent rather than surfaced as a parse error, so a
// corrupted cache entry can never crash the reader.
package fastcache

import (
	"encoding/json"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Keys used by the session engine in the fast cache.
const (
	KeyUser        = "auth.user"
	KeyTenant      = "auth.tenant"
	KeyPermissions = "auth.permissions"
	KeySessionGate = "auth.logged_in"
)

// Backend is the raw synchronous store. Get reports absence via the boolean,
// not an error.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, raw []byte) error
	Delete(key string) error
}

// Cache is the contract layer over a Backend: JSON encoding, never-fail
// self-healing reads, propagating writes, best-effort deletes.
type Cache struct {
	backend Backend
	logger  zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for self-heal and delete events.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache over the given backend.
func New(backend Backend, options ...Option) (*Cache, error) {
	if backend == nil {
		return nil, pkgerrors.New("[fastcache.New] backend is required")
	}
	c := &Cache{
		backend: backend,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// GetObject decodes the value stored under key into out and reports whether a
// value was present and valid. A value that fails to decode is deleted (the
// self-heal) and reported as absent; out is left untouched in that case.
func (c *Cache) GetObject(key string, out any) bool {
	raw, ok, err := c.backend.Get(key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("fast cache read failed, treating as absent")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("fast cache entry corrupt, clearing")
		c.Delete(key)
		return false
	}
	return true
}

// GetBool returns the boolean stored under key. Absent, unreadable and corrupt
// entries all read as false; corrupt entries are cleared.
func (c *Cache) GetBool(key string) bool {
	var value bool
	if !c.GetObject(key, &value) {
		return false
	}
	return value
}

// SetObject stores v under key as JSON. Errors propagate so callers can
// detect the failure and roll back.
func (c *Cache) SetObject(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fast cache encode %q: %w", key, err)
	}
	if err := c.backend.Set(key, raw); err != nil {
		return fmt.Errorf("fast cache write %q: %w", key, err)
	}
	return nil
}

// SetBool stores a boolean under key.
func (c *Cache) SetBool(key string, value bool) error {
	return c.SetObject(key, value)
}

// Delete removes key, logging and swallowing any backend failure.
func (c *Cache) Delete(key string) {
	if err := c.backend.Delete(key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("fast cache delete failed")
	}
}
