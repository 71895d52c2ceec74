package engine

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/biometric"
	"github.com/jrsteele09/go-auth-client/storage/fastcache"
	"github.com/jrsteele09/go-auth-client/storage/secure"
	"github.com/jrsteele09/go-auth-client/token"
)

const enableBiometricsPrompt = "Confirm your identity to enable biometric sign-in"

// Login runs the password login protocol:
//
//  1. auth call
//  2. token (and email) into the secure store
//  3. identity + session gate into the fast cache as one logical block,
//     rolling back the secure-store writes if any part of the block fails
//  4. optional biometric-setup sub-flow
//  5. exactly one CommitLogin on the runtime store
//
// A half-written session is never observable: every failure path either has
// written nothing or deletes what it wrote before reporting.
func (e *Engine) Login(ctx context.Context, creds backend.Credentials) error {
	e.runtime.BeginLoading()

	result, err := e.backend.Login(ctx, creds)
	if err != nil {
		e.runtime.FailLogin(backend.UserMessage(err, MsgLoginFailed))
		return fmt.Errorf("engine.Login: %w", err)
	}

	if err := e.secure.Set(ctx, secure.KeyToken, result.Token); err != nil {
		// Nothing has been written yet, so there is nothing to roll back.
		e.runtime.FailLogin(MsgStorageError)
		return fmt.Errorf("engine.Login: %w", err)
	}
	if err := e.secure.Set(ctx, secure.KeyUserEmail, creds.Email); err != nil {
		e.secure.Delete(ctx, secure.KeyToken)
		e.runtime.FailLogin(MsgStorageError)
		return fmt.Errorf("engine.Login: %w", err)
	}

	if err := e.writeIdentityBlock(result); err != nil {
		// Mandatory rollback: remove the token and any partial cache
		// writes so a later restore sees no session at all.
		e.wipeSession(ctx)
		e.runtime.FailLogin(MsgSaveLoginFailed)
		return fmt.Errorf("engine.Login: %w", err)
	}

	e.runBiometricSetup(ctx)

	expiry := token.ExpiryOf(result.Token, result.ExpiresIn, e.nowFunc())
	e.runtime.CommitLogin(result.Identity, result.Token, expiry)
	e.logger.Info().Str("tenant", tenantID(result)).Msg("login committed")
	return nil
}

// writeIdentityBlock persists the identity snapshot and flips the session
// gate. The gate goes last: it asserts that everything it guards exists.
func (e *Engine) writeIdentityBlock(result *backend.LoginResult) error {
	if err := e.cache.SetObject(fastcache.KeyUser, result.Identity.User); err != nil {
		return err
	}
	if err := e.cache.SetObject(fastcache.KeyTenant, result.Identity.Tenant); err != nil {
		return err
	}
	if err := e.cache.SetObject(fastcache.KeyPermissions, result.Identity.Permissions); err != nil {
		return err
	}
	return e.cache.SetBool(fastcache.KeySessionGate, true)
}

// runBiometricSetup offers to enable biometric sign-in after a successful
// login. It runs only when the device can do biometrics and the preference is
// not already set. Every outcome finalizes the login; a declined consent, a
// failed smoke test or a cancelled prompt just leaves the preference off.
func (e *Engine) runBiometricSetup(ctx context.Context) {
	capability, err := e.prover.CheckCapability(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("biometric capability check failed, skipping setup")
		return
	}
	if !capability.Usable() {
		return
	}
	if e.secure.GetBool(ctx, secure.KeyBiometricPreference) {
		return
	}
	if !e.consent(ctx) {
		return
	}

	// Smoke test: prove the sensor actually works for this user before
	// committing to the preference.
	proof, err := e.prover.RequestProof(ctx, enableBiometricsPrompt)
	if err != nil || proof.Outcome != biometric.OutcomeGranted {
		e.notifier.Notify(Notice{Kind: NoticeInfo, Message: MsgBiometricSetup})
		return
	}

	if err := e.secure.SetBool(ctx, secure.KeyBiometricPreference, true); err != nil {
		e.logger.Warn().Err(err).Msg("persisting biometric preference failed")
		e.notifier.Notify(Notice{Kind: NoticeInfo, Message: MsgBiometricSetup})
		return
	}
	e.runtime.SetBiometricPreference(true)
}

func tenantID(result *backend.LoginResult) string {
	if result.Identity != nil && result.Identity.Tenant != nil {
		return result.Identity.Tenant.ID
	}
	return ""
}
