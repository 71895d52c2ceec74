package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/storage/fastcache"
	"github.com/jrsteele09/go-auth-client/storage/secure"
	"github.com/jrsteele09/go-auth-client/token"
)

// restoreResult is the terminal outcome of one restore attempt.
type restoreResult struct {
	ok               bool
	id               *identity.Identity
	token            string
	expiry           time.Time
	biometricEnabled bool
}

// Restore attempts to recover a session at process start.
//
// The session gate in the fast cache is the sole signal consulted first: when
// it is false the attempt resolves immediately with zero reads against the
// encrypted store, which is the common "definitely signed out" path. When the
// gate is open, the token, the biometric preference and the identity snapshot
// are read concurrently and checked for integrity: a token without a complete
// identity (or the reverse) means the process died mid-login, and the only
// safe answer is a full wipe — preserving the biometric preference — followed
// by the signed-out outcome.
//
// Exactly one terminal transition (CommitRestore or FailRestore) is emitted
// per attempt, even if completion is driven more than once.
func (e *Engine) Restore(ctx context.Context) {
	e.beginRestoreAttempt()

	if !e.cache.GetBool(fastcache.KeySessionGate) {
		e.settleRestore(restoreResult{})
		return
	}

	var (
		storedToken    string
		biometricPref  bool
		storedIdentity *identity.Identity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		storedToken = e.secure.Get(gctx, secure.KeyToken)
		return nil
	})
	g.Go(func() error {
		biometricPref = e.secure.GetBool(gctx, secure.KeyBiometricPreference)
		return nil
	})
	g.Go(func() error {
		storedIdentity = e.readIdentity()
		return nil
	})
	_ = g.Wait() // Reads never fail; failures read as absence.

	if storedToken == "" || !storedIdentity.Complete() {
		e.logger.Warn().
			Bool("token_present", storedToken != "").
			Bool("identity_complete", storedIdentity.Complete()).
			Msg("session gate open but stored session incomplete, wiping")
		e.wipeSession(ctx)
		e.settleRestore(restoreResult{})
		return
	}

	e.settleRestore(restoreResult{
		ok:               true,
		id:               storedIdentity,
		token:            storedToken,
		expiry:           token.ExpiryOf(storedToken, 0, e.nowFunc()),
		biometricEnabled: biometricPref,
	})
}

// beginRestoreAttempt opens a new attempt, re-arming the settle guard.
func (e *Engine) beginRestoreAttempt() {
	e.restoreMu.Lock()
	defer e.restoreMu.Unlock()
	e.restoreSettled = false
}

// settleRestore emits the attempt's terminal transition exactly once.
// Duplicate completions with structurally equal results are dropped.
func (e *Engine) settleRestore(result restoreResult) {
	e.restoreMu.Lock()
	if e.restoreSettled {
		e.restoreMu.Unlock()
		return
	}
	e.restoreSettled = true
	e.restoreMu.Unlock()

	if result.ok {
		e.runtime.CommitRestore(result.id, result.token, result.expiry, result.biometricEnabled)
		return
	}
	e.runtime.FailRestore()
}
