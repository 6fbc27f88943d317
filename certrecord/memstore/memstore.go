// Package memstore provides a thread-safe in-memory record store
// backend, registered as "memory". Suitable for tests, demos, and
// single-node deployments where replay state need not survive restarts.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/certward/certward/certrecord"
	"github.com/certward/certward/secrets"
)

func init() {
	certrecord.Register("memory", func(cfg certrecord.Config, _ secrets.Accessor) (certrecord.Store, error) {
		return New(cfg.OperationTimeout), nil
	})
}

// Store is an in-memory certrecord.Store.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*certrecord.Record
	opTimeout time.Duration
}

var _ certrecord.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New(opTimeout time.Duration) *Store {
	return &Store{
		records:   make(map[string]*certrecord.Record),
		opTimeout: certrecord.CoerceTimeout(opTimeout),
	}
}

func key(provider, instanceID string) string {
	return provider + ":" + instanceID
}

// Connection returns a scoped connection over the shared map.
func (s *Store) Connection(_ context.Context) (certrecord.Connection, error) {
	return &conn{store: s}, nil
}

// OperationTimeout reports the configured per-operation bound. Map
// operations complete locally so the bound is never hit here.
func (s *Store) OperationTimeout() time.Duration {
	return s.opTimeout
}

// Close releases the store.
func (s *Store) Close() error {
	return nil
}

type conn struct {
	store *Store
}

func (c *conn) Get(_ context.Context, provider, instanceID string) (*certrecord.Record, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	record, ok := c.store.records[key(provider, instanceID)]
	if !ok {
		return nil, certrecord.ErrNotFound
	}
	return record.Clone(), nil
}

func (c *conn) Insert(_ context.Context, record *certrecord.Record) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.records[key(record.Provider, record.InstanceID)] = record.Clone()
	return nil
}

func (c *conn) Update(_ context.Context, record *certrecord.Record) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	k := key(record.Provider, record.InstanceID)
	if _, ok := c.store.records[k]; !ok {
		return certrecord.ErrNotFound
	}
	c.store.records[k] = record.Clone()
	return nil
}

func (c *conn) Delete(_ context.Context, provider, instanceID string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	k := key(provider, instanceID)
	if _, ok := c.store.records[k]; !ok {
		return certrecord.ErrNotFound
	}
	delete(c.store.records, k)
	return nil
}

func (c *conn) Close() error {
	return nil
}
