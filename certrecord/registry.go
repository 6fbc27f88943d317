package certrecord

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/certward/certward/secrets"
)

// Config carries the backend-independent construction settings. Path is
// used by file-backed backends, DSN by server-backed ones; each backend
// reads what it needs and ignores the rest.
type Config struct {
	Path             string
	DSN              string
	OperationTimeout time.Duration
}

// Factory constructs a store backend. The secrets accessor is an opaque
// pass-through: this package never reads secret material itself.
type Factory func(cfg Config, sec secrets.Accessor) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend available under name. It is intended to be
// called from backend package init functions and panics on duplicate
// registration, which is always a programming error.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("certrecord: backend %q registered twice", name))
	}
	registry[name] = factory
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open resolves name against the registry and constructs the backend.
// An unknown name is a fatal configuration error and the returned error
// enumerates the available backends. The configured operation timeout is
// coerced to the default when unset or negative before the factory runs.
func Open(name string, cfg Config, sec secrets.Accessor) (Store, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Backends())
	}

	cfg.OperationTimeout = CoerceTimeout(cfg.OperationTimeout)
	store, err := factory(cfg, sec)
	if err != nil {
		return nil, fmt.Errorf("opening record store backend %q: %w", name, err)
	}
	return store, nil
}
