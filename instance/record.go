package instance

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/certward/certward/certrecord"
)

// ErrStoreUnavailable is returned by record lookups in fail-closed mode
// when the record store cannot be reached. In the default fail-open
// mode the condition is logged and reported as "absent" instead.
var ErrStoreUnavailable = errors.New("record store unavailable")

// withConnection runs fn over a scoped store connection, releasing the
// connection on every exit path. All record operations go through here
// so a connection can never leak across calls.
func (m *Manager) withConnection(ctx context.Context, fn func(ctx context.Context, conn certrecord.Connection) error) error {
	conn, err := m.store.Connection(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer conn.Close()
	return fn(ctx, conn)
}

// RecordForInstance fetches the issuance record for (provider,
// instanceID). Without a store, or when no record exists, it returns
// (nil, nil). A store that cannot be reached is a soft nil by default
// and ErrStoreUnavailable under WithFailClosedReplay.
func (m *Manager) RecordForInstance(ctx context.Context, provider, instanceID string) (*certrecord.Record, error) {
	if m.store == nil {
		return nil, nil
	}

	var record *certrecord.Record
	err := m.withConnection(ctx, func(ctx context.Context, conn certrecord.Connection) error {
		var err error
		record, err = conn.Get(ctx, provider, instanceID)
		return err
	})
	if errors.Is(err, certrecord.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		if m.failClosed {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		m.log.Error("unable to fetch certificate record",
			"provider", provider, "instance", instanceID, "error", err)
		return nil, nil
	}
	return record, nil
}

// RecordForCertificate extracts the instance id from cert and fetches
// its issuance record. A certificate without a parsable instance id is
// unverifiable: the lookup is skipped and (nil, nil) returned, logged
// but never an error.
func (m *Manager) RecordForCertificate(ctx context.Context, provider string, cert *x509.Certificate) (*certrecord.Record, error) {
	if m.store == nil {
		return nil, nil
	}

	instanceID, lookup := InstanceIDFromCert(cert)
	if lookup != IDFound {
		m.log.Error("certificate does not have an instance id",
			"provider", provider, "lookup", lookup)
		return nil, nil
	}
	return m.RecordForInstance(ctx, provider, instanceID)
}

// InsertRecord stores a new issuance record, reporting whether it was
// stored. Without a store this is a no-op returning false.
func (m *Manager) InsertRecord(ctx context.Context, record *certrecord.Record) bool {
	return m.writeOp(ctx, "insert", record.Provider, record.InstanceID,
		func(ctx context.Context, conn certrecord.Connection) error {
			return conn.Insert(ctx, record)
		})
}

// UpdateRecord replaces the issuance record with the same identity key,
// reporting whether an existing record was updated.
func (m *Manager) UpdateRecord(ctx context.Context, record *certrecord.Record) bool {
	return m.writeOp(ctx, "update", record.Provider, record.InstanceID,
		func(ctx context.Context, conn certrecord.Connection) error {
			return conn.Update(ctx, record)
		})
}

// DeleteRecord removes the issuance record for (provider, instanceID),
// reporting whether a record was removed.
func (m *Manager) DeleteRecord(ctx context.Context, provider, instanceID string) bool {
	return m.writeOp(ctx, "delete", provider, instanceID,
		func(ctx context.Context, conn certrecord.Connection) error {
			return conn.Delete(ctx, provider, instanceID)
		})
}

func (m *Manager) writeOp(ctx context.Context, op, provider, instanceID string, fn func(context.Context, certrecord.Connection) error) bool {
	if m.store == nil {
		return false
	}
	if err := m.withConnection(ctx, fn); err != nil {
		m.log.Error("certificate record operation failed",
			"op", op, "provider", provider, "instance", instanceID, "error", err)
		return false
	}
	return true
}
