// Package secrets provides read-only access to secret material needed by
// record store backends (for example a database password). The engine
// itself never inspects secret values; it only threads an Accessor
// through to the backend at construction time.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrSecretNotFound is returned when the accessor has no value for the
// requested name.
var ErrSecretNotFound = errors.New("secret not found")

// Accessor resolves named secrets. Implementations must be safe for
// concurrent use.
type Accessor interface {
	// Secret returns the value for name. The caller must not retain or
	// mutate the returned slice beyond the current operation.
	Secret(name string) ([]byte, error)
}

// EnclaveAccessor keeps secret values in memguard enclaves so they stay
// encrypted in memory between reads.
type EnclaveAccessor struct {
	mu       sync.RWMutex
	enclaves map[string]*memguard.Enclave
}

var _ Accessor = (*EnclaveAccessor)(nil)

// NewEnclaveAccessor returns an empty enclave-backed accessor.
func NewEnclaveAccessor() *EnclaveAccessor {
	return &EnclaveAccessor{enclaves: make(map[string]*memguard.Enclave)}
}

// Put seals value into an enclave under name. The input slice is wiped
// by memguard as part of sealing.
func (a *EnclaveAccessor) Put(name string, value []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enclaves[name] = memguard.NewEnclave(value)
}

// Secret opens the enclave for name and returns a copy of its contents.
func (a *EnclaveAccessor) Secret(name string) ([]byte, error) {
	a.mu.RLock()
	enclave, ok := a.enclaves[name]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening enclave for %s: %w", name, err)
	}
	defer buf.Destroy()

	out := make([]byte, buf.Size())
	copy(out, buf.Bytes())
	return out, nil
}

// EnvAccessor resolves secrets from environment variables, mapping a
// secret name like "db-password" to PREFIX_DB_PASSWORD.
type EnvAccessor struct {
	Prefix string
}

var _ Accessor = EnvAccessor{}

// Secret looks up the environment variable for name.
func (a EnvAccessor) Secret(name string) ([]byte, error) {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if a.Prefix != "" {
		key = a.Prefix + "_" + key
	}
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s (env %s)", ErrSecretNotFound, name, key)
	}
	return []byte(value), nil
}
