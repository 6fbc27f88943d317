package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnclaveAccessor(t *testing.T) {
	acc := NewEnclaveAccessor()
	acc.Put("db-password", []byte("hunter2"))

	got, err := acc.Secret("db-password")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)

	// repeated reads keep working (enclave reopened per read)
	got, err = acc.Secret("db-password")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)

	_, err = acc.Secret("missing")
	require.ErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvAccessor(t *testing.T) {
	t.Setenv("CERTWARD_DB_PASSWORD", "hunter2")

	acc := EnvAccessor{Prefix: "CERTWARD"}
	got, err := acc.Secret("db-password")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)

	_, err = acc.Secret("other-secret")
	require.ErrorIs(t, err, ErrSecretNotFound)
}
