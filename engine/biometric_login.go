package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-auth-client/biometric"
	"github.com/jrsteele09/go-auth-client/storage/fastcache"
	"github.com/jrsteele09/go-auth-client/storage/secure"
	"github.com/jrsteele09/go-auth-client/token"
)

const biometricSignInPrompt = "Confirm your identity to sign in"

var (
	// ErrBiometricsUnavailable is returned when the device cannot do
	// biometrics or the preference is off.
	ErrBiometricsUnavailable = errors.New("biometric sign-in unavailable")

	// ErrNoStoredSession is returned when no token remains in the secure
	// store to refresh from.
	ErrNoStoredSession = errors.New("no stored session")

	// ErrProofRejected is returned when the platform rejected the proof
	// attempt (distinct from the user cancelling, which is a silent no-op).
	ErrProofRejected = errors.New("identity proof rejected")

	// ErrSessionCorrupted is returned when the stored session turned out to
	// be unusable and was wiped.
	ErrSessionCorrupted = errors.New("stored session corrupted")
)

// BiometricLogin signs the user back in from a retained soft-logout session.
//
// After the proof succeeds the stored token's freshness is deliberately not
// trusted: it is proactively exchanged through the refresh coordinator before
// any request can race a stale credential. The coordinator's failure path has
// already wiped storage and emitted the logout transition, so this method
// only adds the user-facing "session expired" notice on top.
func (e *Engine) BiometricLogin(ctx context.Context) error {
	capability, err := e.prover.CheckCapability(ctx)
	if err != nil {
		return fmt.Errorf("engine.BiometricLogin: %w", err)
	}
	if !capability.Usable() || !e.secure.GetBool(ctx, secure.KeyBiometricPreference) {
		return ErrBiometricsUnavailable
	}
	if e.secure.Get(ctx, secure.KeyToken) == "" {
		return ErrNoStoredSession
	}

	proof, err := e.prover.RequestProof(ctx, biometricSignInPrompt)
	if err != nil {
		e.notifier.Notify(Notice{Kind: NoticeError, Message: MsgLoginFailed})
		return fmt.Errorf("engine.BiometricLogin: %w", err)
	}
	switch proof.Outcome {
	case biometric.OutcomeCancelled:
		// The user changed their mind. Not an error, no notice.
		return nil
	case biometric.OutcomeFailed:
		e.notifier.Notify(Notice{Kind: NoticeError, Message: MsgLoginFailed})
		return fmt.Errorf("engine.BiometricLogin: %w: %s", ErrProofRejected, proof.Reason)
	}

	freshToken, err := e.refresher.Refresh(ctx)
	if err != nil {
		e.notifier.Notify(Notice{Kind: NoticeError, Message: MsgSessionExpired})
		return fmt.Errorf("engine.BiometricLogin: %w", err)
	}

	if err := e.cache.SetBool(fastcache.KeySessionGate, true); err != nil {
		// The session is live regardless; a closed gate only skips the
		// next startup's automatic restore.
		e.logger.Warn().Err(err).Msg("reopening session gate failed")
	}

	id := e.readIdentity()
	if !id.Complete() {
		// A logout raced us and cleared the identity between the refresh
		// and this read. Treat it like restore-time corruption: wipe and
		// sign out rather than guessing.
		e.wipeSession(ctx)
		e.runtime.FailRestore()
		e.notifier.Notify(Notice{Kind: NoticeError, Message: MsgSessionExpired})
		return ErrSessionCorrupted
	}

	e.runtime.CommitRestore(id, freshToken, token.ExpiryOf(freshToken, 0, e.nowFunc()), true)
	e.logger.Info().Msg("biometric login committed")
	return nil
}
