package certrecord

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certward/certward/secrets"
)

type stubStore struct {
	opTimeout time.Duration
}

func (s *stubStore) Connection(context.Context) (Connection, error) { return nil, nil }
func (s *stubStore) OperationTimeout() time.Duration                { return s.opTimeout }
func (s *stubStore) Close() error                                   { return nil }

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open("no-such-backend", Config{}, nil)
	require.ErrorIs(t, err, ErrUnknownBackend)
	// the error should enumerate what is available
	assert.Contains(t, err.Error(), "available:")
}

func TestOpenCoercesTimeout(t *testing.T) {
	Register("stub", func(cfg Config, _ secrets.Accessor) (Store, error) {
		return &stubStore{opTimeout: cfg.OperationTimeout}, nil
	})

	store, err := Open("stub", Config{OperationTimeout: -5 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOperationTimeout, store.OperationTimeout())

	store, err = Open("stub", Config{OperationTimeout: 3 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, store.OperationTimeout())
}

func TestCoerceTimeout(t *testing.T) {
	assert.Equal(t, DefaultOperationTimeout, CoerceTimeout(0))
	assert.Equal(t, DefaultOperationTimeout, CoerceTimeout(-time.Second))
	assert.Equal(t, 42*time.Second, CoerceTimeout(42*time.Second))
}
