// Package certrecord provides the storage abstraction for certificate
// issuance records. Records give the platform durable, cross-host
// knowledge of each instance's current certificate so that a refresh
// request presenting a cloned certificate can be detected. Backends are
// pluggable and resolved by name at startup; running without a store is
// supported and simply disables replay detection.
package certrecord

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Connection.Get when no record exists for
	// the (provider, instanceID) pair.
	ErrNotFound = errors.New("certificate record not found")

	// ErrUnknownBackend is returned when the configured backend name has no
	// registered factory.
	ErrUnknownBackend = errors.New("unknown record store backend")
)

// Record is the platform's view of one instance's currently valid
// certificate. It is keyed by (Provider, InstanceID); the remaining
// fields carry the serial and timing state a refresh check compares the
// presented certificate against.
type Record struct {
	Provider   string `json:"provider"`
	InstanceID string `json:"instanceId"`
	Service    string `json:"service,omitempty"`

	CurrentSerial string    `json:"currentSerial"`
	CurrentTime   time.Time `json:"currentTime"`
	CurrentIP     string    `json:"currentIP,omitempty"`

	PrevSerial string    `json:"prevSerial,omitempty"`
	PrevTime   time.Time `json:"prevTime,omitempty"`
	PrevIP     string    `json:"prevIP,omitempty"`

	ExpiryTime time.Time `json:"expiryTime,omitempty"`
}

// Clone returns a copy of the record so callers and backends never share
// mutable state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
