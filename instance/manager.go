// Package instance is the identity issuance orchestrator. A Manager
// composes the certificate signer, the signer-material cache, the
// optional record store, and the two IP allowlists into the operations
// the request-handling layer calls: issue an X.509 identity, optionally
// extend it with an SSH certificate, gate requests by source IP, and
// maintain the issuance records used for replay detection.
package instance

import (
	"log/slog"

	"github.com/certward/certward/allowlist"
	"github.com/certward/certward/authz"
	"github.com/certward/certward/certrecord"
	"github.com/certward/certward/signer"
)

// Manager orchestrates identity issuance. Construct with New; the zero
// value is not usable. A Manager is safe for concurrent use.
type Manager struct {
	signer   signer.Signer
	material *signer.MaterialCache

	store      certrecord.Store
	failClosed bool

	refreshAllowlist  *allowlist.List
	registerAllowlist *allowlist.List

	log *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecordStore attaches a record store. Without one, record
// operations are safe no-ops and replay detection is disabled.
func WithRecordStore(store certrecord.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithFailClosedReplay makes record lookups return ErrStoreUnavailable
// when the store cannot be reached, instead of a soft "absent". The
// default is fail-open, keeping issuance available when the store is
// down.
func WithFailClosedReplay() Option {
	return func(m *Manager) { m.failClosed = true }
}

// WithRefreshAllowlist sets the blocks gating certificate refresh
// requests.
func WithRefreshAllowlist(list *allowlist.List) Option {
	return func(m *Manager) { m.refreshAllowlist = list }
}

// WithRegisterAllowlist sets the blocks gating brand-new instance
// certificate requests.
func WithRegisterAllowlist(list *allowlist.List) Option {
	return func(m *Manager) { m.registerAllowlist = list }
}

// WithLogger sets the manager's logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// New returns a Manager issuing certificates through s.
func New(s signer.Signer, opts ...Option) *Manager {
	m := &Manager{
		signer:            s,
		refreshAllowlist:  &allowlist.List{},
		registerAllowlist: &allowlist.List{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.material = signer.NewMaterialCache(s, m.log)
	return m
}

// ReplayProtected reports whether a record store is attached, i.e.
// whether refresh replay detection is active.
func (m *Manager) ReplayProtected() bool {
	return m.store != nil
}

// VerifyCertRefreshIP reports whether ipAddress may request a
// certificate refresh. An unconfigured allowlist permits everything.
func (m *Manager) VerifyCertRefreshIP(ipAddress string) bool {
	return m.refreshAllowlist.Permits(ipAddress)
}

// VerifyInstanceRegisterIP reports whether ipAddress may request a
// brand-new instance certificate.
func (m *Manager) VerifyInstanceRegisterIP(ipAddress string) bool {
	return m.registerAllowlist.Permits(ipAddress)
}

// AuthorizeLaunch runs the two-stage launch authorization for provider
// against domain's service using the given authorization collaborator.
func (m *Manager) AuthorizeLaunch(authorizer authz.Authorizer, provider authz.Principal, domain, service string) (bool, string) {
	return authz.LaunchAuthorizer{Authorizer: authorizer}.AuthorizeLaunch(provider, domain, service)
}
