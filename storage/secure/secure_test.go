package secure_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/storage/secure"
	"github.com/jrsteele09/go-auth-client/storage/secure/securefakes"
)

func newStore(t *testing.T) (*secure.Store, *securefakes.FakeBackend) {
	t.Helper()
	backend := securefakes.NewFakeBackend()
	store, err := secure.New(backend)
	require.NoError(t, err)
	return store, backend
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := secure.New(nil)
	require.Error(t, err)
}

func TestGetAbsentReturnsEmpty(t *testing.T) {
	store, _ := newStore(t)
	require.Empty(t, store.Get(context.Background(), secure.KeyToken))
}

func TestGetSwallowsBackendFailure(t *testing.T) {
	store, backend := newStore(t)

	backend.Seed(secure.KeyToken, "t1")
	backend.GetErrs[secure.KeyToken] = errors.New("keystore locked")

	require.Empty(t, store.Get(context.Background(), secure.KeyToken))
}

func TestSetPropagatesFailure(t *testing.T) {
	store, backend := newStore(t)

	backend.SetErrs[secure.KeyToken] = errors.New("keystore full")
	require.Error(t, store.Set(context.Background(), secure.KeyToken, "t1"))
}

func TestSetGetRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, secure.KeyToken, "t1"))
	require.Equal(t, "t1", store.Get(ctx, secure.KeyToken))
}

func TestBoolRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.False(t, store.GetBool(ctx, secure.KeyBiometricPreference))
	require.NoError(t, store.SetBool(ctx, secure.KeyBiometricPreference, true))
	require.True(t, store.GetBool(ctx, secure.KeyBiometricPreference))
	require.NoError(t, store.SetBool(ctx, secure.KeyBiometricPreference, false))
	require.False(t, store.GetBool(ctx, secure.KeyBiometricPreference))
}

func TestDeleteSwallowsFailure(t *testing.T) {
	store, backend := newStore(t)

	backend.Seed(secure.KeyToken, "t1")
	backend.DeleteErrs[secure.KeyToken] = errors.New("sticky key")

	store.Delete(context.Background(), secure.KeyToken) // Must not panic.
}

func TestDeleteRemovesValue(t *testing.T) {
	store, backend := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, secure.KeyToken, "t1"))
	store.Delete(ctx, secure.KeyToken)

	_, ok := backend.Value(secure.KeyToken)
	require.False(t, ok)
}
