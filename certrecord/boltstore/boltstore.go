// Package boltstore provides a BBolt-backed record store, registered as
// "bolt". Records live in one bucket per provider, JSON-encoded and
// keyed by instance id. A single file gives durable replay state for
// single-host deployments without a database server.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/certward/certward/certrecord"
	"github.com/certward/certward/secrets"
)

func init() {
	certrecord.Register("bolt", func(cfg certrecord.Config, _ secrets.Accessor) (certrecord.Store, error) {
		return Open(cfg.Path, cfg.OperationTimeout)
	})
}

// Store implements certrecord.Store backed by a BBolt database.
type Store struct {
	db        *bbolt.DB
	opTimeout time.Duration
}

var _ certrecord.Store = (*Store)(nil)

// Open opens (creating if needed) the BBolt database at path.
func Open(path string, opTimeout time.Duration) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt record store requires a file path")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return FromDB(db, opTimeout), nil
}

// FromDB wraps an already opened BBolt database.
func FromDB(db *bbolt.DB, opTimeout time.Duration) *Store {
	return &Store{db: db, opTimeout: certrecord.CoerceTimeout(opTimeout)}
}

// Connection returns a scoped connection over the database.
func (s *Store) Connection(_ context.Context) (certrecord.Connection, error) {
	return &conn{db: s.db}, nil
}

// OperationTimeout reports the configured per-operation bound. Bolt
// transactions run locally, so the bound is a formality here.
func (s *Store) OperationTimeout() time.Duration {
	return s.opTimeout
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type conn struct {
	db *bbolt.DB
}

func (c *conn) Get(_ context.Context, provider, instanceID string) (*certrecord.Record, error) {
	var record certrecord.Record
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(provider))
		if b == nil {
			return certrecord.ErrNotFound
		}
		data := b.Get([]byte(instanceID))
		if data == nil {
			return certrecord.ErrNotFound
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *conn) Insert(_ context.Context, record *certrecord.Record) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(record.Provider))
		if err != nil {
			return err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.InstanceID), data)
	})
}

func (c *conn) Update(_ context.Context, record *certrecord.Record) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(record.Provider))
		if b == nil || b.Get([]byte(record.InstanceID)) == nil {
			return certrecord.ErrNotFound
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.InstanceID), data)
	})
}

func (c *conn) Delete(_ context.Context, provider, instanceID string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(provider))
		if b == nil || b.Get([]byte(instanceID)) == nil {
			return certrecord.ErrNotFound
		}
		return b.Delete([]byte(instanceID))
	})
}

func (c *conn) Close() error {
	return nil
}
