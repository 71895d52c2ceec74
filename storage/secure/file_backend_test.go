package secure_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/storage/secure"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secure.bin")
	ctx := context.Background()

	backend, err := secure.NewFileBackend(path, []byte("correct horse battery staple"))
	require.NoError(t, err)

	_, err = backend.Get(ctx, secure.KeyToken)
	require.ErrorIs(t, err, secure.ErrNotFound)

	require.NoError(t, backend.Set(ctx, secure.KeyToken, "t1"))
	value, err := backend.Get(ctx, secure.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "t1", value)
}

func TestFileBackendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secure.bin")
	passphrase := []byte("correct horse battery staple")
	ctx := context.Background()

	backend, err := secure.NewFileBackend(path, passphrase)
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, secure.KeyToken, "t1"))
	require.NoError(t, backend.Set(ctx, secure.KeyBiometricPreference, "true"))

	reopened, err := secure.NewFileBackend(path, passphrase)
	require.NoError(t, err)

	value, err := reopened.Get(ctx, secure.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "t1", value)

	value, err = reopened.Get(ctx, secure.KeyBiometricPreference)
	require.NoError(t, err)
	require.Equal(t, "true", value)
}

func TestFileBackendWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secure.bin")
	ctx := context.Background()

	backend, err := secure.NewFileBackend(path, []byte("correct horse battery staple"))
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, secure.KeyToken, "t1"))

	_, err = secure.NewFileBackend(path, []byte("wrong passphrase"))
	require.Error(t, err)
}

func TestFileBackendContentIsNotPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secure.bin")
	ctx := context.Background()

	backend, err := secure.NewFileBackend(path, []byte("correct horse battery staple"))
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, secure.KeyToken, "super-secret-token-value"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "super-secret-token-value")
}

func TestFileBackendDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secure.bin")
	ctx := context.Background()

	backend, err := secure.NewFileBackend(path, []byte("correct horse battery staple"))
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, secure.KeyToken, "t1"))
	require.NoError(t, backend.Delete(ctx, secure.KeyToken))
	require.NoError(t, backend.Delete(ctx, secure.KeyToken), "deleting an absent key is not an error")

	_, err = backend.Get(ctx, secure.KeyToken)
	require.ErrorIs(t, err, secure.ErrNotFound)
}

func TestFileBackendValidation(t *testing.T) {
	_, err := secure.NewFileBackend("  ", []byte("pass"))
	require.Error(t, err)

	_, err = secure.NewFileBackend(filepath.Join(t.TempDir(), "s.bin"), nil)
	require.Error(t, err)
}
