package certrecord

import (
	"context"
	"time"
)

// DefaultOperationTimeout bounds a single store operation when no timeout
// is configured, or when a negative one is.
const DefaultOperationTimeout = 10 * time.Second

// Store is a handle to a record store backend. A Store is safe for
// concurrent use; the Connections it hands out are not, and must stay
// within the call that acquired them.
type Store interface {
	// Connection acquires a scoped connection. Callers must Close it on
	// every exit path before returning.
	Connection(ctx context.Context) (Connection, error)

	// OperationTimeout reports the bound the backend applies to each
	// store operation.
	OperationTimeout() time.Duration

	Close() error
}

// Connection performs record operations over one acquired backend
// connection. Each method is bounded by the store's operation timeout;
// the backend enforces it.
type Connection interface {
	// Get returns the record for (provider, instanceID), or ErrNotFound.
	Get(ctx context.Context, provider, instanceID string) (*Record, error)

	// Insert stores a new record.
	Insert(ctx context.Context, record *Record) error

	// Update replaces the record with the same (Provider, InstanceID)
	// key, returning ErrNotFound if none exists.
	Update(ctx context.Context, record *Record) error

	// Delete removes the record for (provider, instanceID), returning
	// ErrNotFound if none exists.
	Delete(ctx context.Context, provider, instanceID string) error

	Close() error
}

// CoerceTimeout applies the default to unset or negative operation
// timeouts.
func CoerceTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultOperationTimeout
	}
	return d
}
