// Package pgstore implements certrecord.Store backed by PostgreSQL,
// registered as "postgres". This is the backend for multi-host
// deployments: a refresh request landing on any host sees the record
// written by the host that issued the certificate.
//
// The cert_records table uses a composite primary key (provider,
// instance_id) mirroring the record identity key. The DSN may carry a
// ${password} placeholder which is filled from the secret accessor so
// credentials stay out of configuration files.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certward/certward/certrecord"
	"github.com/certward/certward/secrets"
)

// PasswordSecret is the secret name resolved when the DSN carries a
// ${password} placeholder.
const PasswordSecret = "db-password"

const passwordPlaceholder = "${password}"

//go:embed schema.sql
var schemaSQL string

func init() {
	certrecord.Register("postgres", func(cfg certrecord.Config, sec secrets.Accessor) (certrecord.Store, error) {
		dsn, err := resolveDSN(cfg.DSN, sec)
		if err != nil {
			return nil, err
		}
		return Open(context.Background(), dsn, cfg.OperationTimeout)
	})
}

func resolveDSN(dsn string, sec secrets.Accessor) (string, error) {
	if dsn == "" {
		return "", fmt.Errorf("postgres record store requires a DSN")
	}
	if !strings.Contains(dsn, passwordPlaceholder) {
		return dsn, nil
	}
	if sec == nil {
		return "", fmt.Errorf("DSN references %s but no secret accessor is configured", passwordPlaceholder)
	}
	password, err := sec.Secret(PasswordSecret)
	if err != nil {
		return "", fmt.Errorf("resolving DSN password: %w", err)
	}
	return strings.ReplaceAll(dsn, passwordPlaceholder, string(password)), nil
}

// Store implements certrecord.Store backed by PostgreSQL.
type Store struct {
	pool      *pgxpool.Pool
	opTimeout time.Duration
}

var _ certrecord.Store = (*Store)(nil)

// Open creates a connection pool from dsn, ensures the schema exists,
// and returns the store.
func Open(ctx context.Context, dsn string, opTimeout time.Duration) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return FromPool(pool, opTimeout), nil
}

// FromPool wraps an existing pgx connection pool.
func FromPool(pool *pgxpool.Pool, opTimeout time.Duration) *Store {
	return &Store{pool: pool, opTimeout: certrecord.CoerceTimeout(opTimeout)}
}

// EnsureSchema creates the required tables and indexes if they do not
// exist. Safe to call on every startup.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}

// Connection acquires a pooled connection scoped to one operation
// sequence. A backend that cannot be reached surfaces the error here,
// letting callers degrade instead of blocking.
func (s *Store) Connection(ctx context.Context) (certrecord.Connection, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	pc, err := s.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("acquiring postgres connection: %w", err)
	}
	return &conn{pc: pc, opTimeout: s.opTimeout}, nil
}

// OperationTimeout reports the bound applied to each store operation.
func (s *Store) OperationTimeout() time.Duration {
	return s.opTimeout
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type conn struct {
	pc        *pgxpool.Conn
	opTimeout time.Duration
}

// bounded derives the per-operation deadline; a hung backend call must
// not hold the connection indefinitely.
func (c *conn) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *conn) Get(ctx context.Context, provider, instanceID string) (*certrecord.Record, error) {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	record := certrecord.Record{Provider: provider, InstanceID: instanceID}
	var currentTime, prevTime, expiryTime *time.Time
	err := c.pc.QueryRow(ctx,
		`SELECT service, current_serial, current_time_at, current_ip,
		        prev_serial, prev_time_at, prev_ip, expiry_time
		 FROM cert_records WHERE provider = $1 AND instance_id = $2`,
		provider, instanceID).Scan(
		&record.Service, &record.CurrentSerial, &currentTime, &record.CurrentIP,
		&record.PrevSerial, &prevTime, &record.PrevIP, &expiryTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, certrecord.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if currentTime != nil {
		record.CurrentTime = *currentTime
	}
	if prevTime != nil {
		record.PrevTime = *prevTime
	}
	if expiryTime != nil {
		record.ExpiryTime = *expiryTime
	}
	return &record, nil
}

func (c *conn) Insert(ctx context.Context, record *certrecord.Record) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	_, err := c.pc.Exec(ctx,
		`INSERT INTO cert_records (provider, instance_id, service, current_serial,
		        current_time_at, current_ip, prev_serial, prev_time_at, prev_ip, expiry_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (provider, instance_id)
		 DO UPDATE SET service = $3, current_serial = $4, current_time_at = $5,
		        current_ip = $6, prev_serial = $7, prev_time_at = $8, prev_ip = $9,
		        expiry_time = $10`,
		record.Provider, record.InstanceID, record.Service, record.CurrentSerial,
		timeArg(record.CurrentTime), record.CurrentIP, record.PrevSerial,
		timeArg(record.PrevTime), record.PrevIP, timeArg(record.ExpiryTime))
	return err
}

func (c *conn) Update(ctx context.Context, record *certrecord.Record) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	tag, err := c.pc.Exec(ctx,
		`UPDATE cert_records SET service = $3, current_serial = $4, current_time_at = $5,
		        current_ip = $6, prev_serial = $7, prev_time_at = $8, prev_ip = $9,
		        expiry_time = $10
		 WHERE provider = $1 AND instance_id = $2`,
		record.Provider, record.InstanceID, record.Service, record.CurrentSerial,
		timeArg(record.CurrentTime), record.CurrentIP, record.PrevSerial,
		timeArg(record.PrevTime), record.PrevIP, timeArg(record.ExpiryTime))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return certrecord.ErrNotFound
	}
	return nil
}

func (c *conn) Delete(ctx context.Context, provider, instanceID string) error {
	ctx, cancel := c.bounded(ctx)
	defer cancel()

	tag, err := c.pc.Exec(ctx,
		`DELETE FROM cert_records WHERE provider = $1 AND instance_id = $2`,
		provider, instanceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return certrecord.ErrNotFound
	}
	return nil
}

func (c *conn) Close() error {
	c.pc.Release()
	return nil
}

func timeArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
