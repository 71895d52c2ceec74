package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/session"
)

func testIdentity() *identity.Identity {
	return &identity.Identity{
		User:        &identity.User{ID: "user-1", Email: "john.doe@example.com"},
		Tenant:      &identity.Tenant{ID: "tenant-1", Name: "Acme"},
		Permissions: []identity.Permission{"invoices.read"},
	}
}

func TestInitialState(t *testing.T) {
	store := session.NewStore()
	state := store.Snapshot()

	require.False(t, state.Authenticated)
	require.False(t, state.Loading)
	require.Empty(t, state.Token)
	require.Nil(t, state.Identity)
}

func TestCommitLogin(t *testing.T) {
	store := session.NewStore()
	expiry := time.Now().Add(6 * time.Hour)

	store.BeginLoading()
	require.True(t, store.Snapshot().Loading)

	store.CommitLogin(testIdentity(), "t1", expiry)
	state := store.Snapshot()
	require.True(t, state.Authenticated)
	require.False(t, state.Loading)
	require.Equal(t, "t1", state.Token)
	require.Equal(t, expiry, state.TokenExpiry)
	require.Equal(t, "tenant-1", state.Identity.Tenant.ID)
	require.Empty(t, state.ErrorMessage)
}

func TestCommitLoginIncompleteIdentityIsNotAuthenticated(t *testing.T) {
	store := session.NewStore()

	store.CommitLogin(&identity.Identity{User: &identity.User{ID: "user-1"}}, "t1", time.Time{})
	require.False(t, store.Snapshot().Authenticated)
}

func TestFailLogin(t *testing.T) {
	store := session.NewStore()
	store.BeginLoading()
	store.FailLogin("invalid credentials")

	state := store.Snapshot()
	require.False(t, state.Authenticated)
	require.False(t, state.Loading)
	require.Empty(t, state.Token)
	require.Equal(t, "invalid credentials", state.ErrorMessage)
}

func TestCommitRestoreCarriesBiometricFlag(t *testing.T) {
	store := session.NewStore()
	store.CommitRestore(testIdentity(), "t1", time.Now().Add(time.Hour), true)

	state := store.Snapshot()
	require.True(t, state.Authenticated)
	require.True(t, state.BiometricEnabled)
}

func TestCommitLogoutRetainsBiometricFlag(t *testing.T) {
	store := session.NewStore()
	store.CommitRestore(testIdentity(), "t1", time.Now().Add(time.Hour), true)
	store.CommitLogout()

	state := store.Snapshot()
	require.False(t, state.Authenticated)
	require.Empty(t, state.Token)
	require.Nil(t, state.Identity)
	require.True(t, state.BiometricEnabled, "logout must not clear the biometric preference mirror")
}

func TestReplaceToken(t *testing.T) {
	store := session.NewStore()
	store.CommitLogin(testIdentity(), "t1", time.Time{})

	expiry := time.Now().Add(6 * time.Hour)
	store.ReplaceToken("t2", expiry)

	state := store.Snapshot()
	require.Equal(t, "t2", state.Token)
	require.Equal(t, expiry, state.TokenExpiry)
	require.True(t, state.Authenticated)
	require.Equal(t, "user-1", state.Identity.User.ID, "identity must be untouched by a token swap")
}

func TestClearError(t *testing.T) {
	store := session.NewStore()
	store.FailLogin("boom")
	store.ClearError()
	require.Empty(t, store.Snapshot().ErrorMessage)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	store := session.NewStore()

	var events []session.State
	cancel := store.Subscribe(func(s session.State) {
		events = append(events, s)
	})

	store.BeginLoading()
	store.CommitLogin(testIdentity(), "t1", time.Time{})
	require.Len(t, events, 2)
	require.True(t, events[1].Authenticated)

	cancel()
	store.CommitLogout()
	require.Len(t, events, 2, "cancelled subscriber must not be called")
}
