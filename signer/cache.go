package signer

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// MaterialCache lazily caches the signer's CA certificate and the two
// SSH certificate-authority certificates. Each slot is fetched from the
// signer at most once per process on the first successful demand; a
// failed or empty fetch is not published, so a later caller retries.
// Once populated a slot is immutable for the process lifetime — CA
// rotation requires a restart.
//
// The cache is owned by whoever constructs it and passed explicitly to
// components that need it; there is no package-level instance.
type MaterialCache struct {
	signer Signer
	log    *slog.Logger

	ca      cell
	sshHost cell
	sshUser cell
}

// NewMaterialCache returns an empty cache over signer. A nil logger
// falls back to slog.Default.
func NewMaterialCache(s Signer, log *slog.Logger) *MaterialCache {
	if log == nil {
		log = slog.Default()
	}
	return &MaterialCache{signer: s, log: log}
}

// CACertificate returns the cached X.509 CA certificate, fetching it
// from the signer on first demand. An empty string means the signer
// could not provide it; the failure is logged, not returned.
func (m *MaterialCache) CACertificate() string {
	return m.ca.get(m.log, "x509-ca", m.signer.CACertificate)
}

// SSHCertificate returns the cached SSH CA certificate for kind
// (SSHHostCert or SSHUserCert). An unrecognized kind yields an empty
// string without touching the signer. Each kind has its own slot;
// populating one never populates the other.
func (m *MaterialCache) SSHCertificate(kind string) string {
	switch kind {
	case SSHHostCert:
		return m.sshHost.get(m.log, "ssh-host-ca", func() (string, error) {
			return m.signer.SSHCertificate(SSHHostCert)
		})
	case SSHUserCert:
		return m.sshUser.get(m.log, "ssh-user-ca", func() (string, error) {
			return m.signer.SSHCertificate(SSHUserCert)
		})
	default:
		m.log.Error("unrecognized ssh certificate kind", "kind", kind)
		return ""
	}
}

// cell is a write-once slot with double-checked initialization: an
// atomic fast path for hits and a mutex-guarded slow path so concurrent
// misses block on one fetch instead of issuing N.
type cell struct {
	mu    sync.Mutex
	value atomic.Pointer[string]
}

func (c *cell) get(log *slog.Logger, name string, fetch func() (string, error)) string {
	if v := c.value.Load(); v != nil {
		return *v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v := c.value.Load(); v != nil {
		return *v
	}

	v, err := fetch()
	if err != nil || v == "" {
		log.Error("unable to fetch signer material", "slot", name, "error", err)
		return ""
	}
	c.value.Store(&v)
	return v
}
