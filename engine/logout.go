package engine

import (
	"context"

	"github.com/jrsteele09/go-auth-client/storage/fastcache"
	"github.com/jrsteele09/go-auth-client/storage/secure"
)

// LogoutMode selects between the two logout semantics. It is chosen once at
// the start of the operation and threaded through, never re-read from mutable
// state mid-operation.
type LogoutMode int

const (
	// LogoutHard calls the logout endpoint (best-effort) and wipes all
	// durable session data, keeping only the biometric preference.
	LogoutHard LogoutMode = iota

	// LogoutSoft closes the session gate and nothing else: the token and
	// identity are deliberately retained, and the server-side token is left
	// valid, so the next biometric login can refresh it.
	LogoutSoft
)

func (m LogoutMode) String() string {
	if m == LogoutSoft {
		return "soft"
	}
	return "hard"
}

// Logout ends the session, choosing soft logout when the biometric
// preference is set and hard logout otherwise.
func (e *Engine) Logout(ctx context.Context) {
	mode := LogoutHard
	if e.secure.GetBool(ctx, secure.KeyBiometricPreference) {
		mode = LogoutSoft
	}
	e.LogoutWithMode(ctx, mode)
}

// LogoutWithMode ends the session with an explicit mode. Whatever fails along
// the way, the runtime store always receives CommitLogout and the external
// cache is always invalidated: a storage error must never trap the user in an
// authenticated-looking UI.
func (e *Engine) LogoutWithMode(ctx context.Context, mode LogoutMode) {
	degraded := false

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("logout step panicked, forcing cleanup")
			degraded = true
		}
		e.refresher.Reset()
		e.runtime.CommitLogout()
		if mode == LogoutHard || degraded {
			e.invalidator.InvalidateAll()
		} else {
			e.invalidator.InvalidateRestore()
		}
		e.logger.Info().Str("mode", mode.String()).Bool("degraded", degraded).Msg("logout committed")
	}()

	switch mode {
	case LogoutHard:
		if tok := e.runtime.Snapshot().Token; tok != "" {
			if err := e.backend.Logout(ctx, tok); err != nil {
				// Best-effort: remote invalidation failing never blocks
				// local cleanup.
				e.logger.Warn().Err(err).Msg("logout endpoint call failed")
			}
		}
		e.secure.Delete(ctx, secure.KeyToken)
		e.secure.Delete(ctx, secure.KeyUserEmail)
		e.cache.Delete(fastcache.KeyUser)
		e.cache.Delete(fastcache.KeyTenant)
		e.cache.Delete(fastcache.KeyPermissions)
		if err := e.cache.SetBool(fastcache.KeySessionGate, false); err != nil {
			e.logger.Warn().Err(err).Msg("clearing session gate failed")
			degraded = true
		}

	case LogoutSoft:
		// No endpoint call: the token must stay valid server-side for the
		// next biometric login's refresh.
		if err := e.cache.SetBool(fastcache.KeySessionGate, false); err != nil {
			e.logger.Warn().Err(err).Msg("clearing session gate failed")
			degraded = true
		}
	}
}
