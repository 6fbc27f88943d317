package instance

import (
	"errors"
	"fmt"

	"github.com/certward/certward/signer"
)

var (
	// ErrSigningFailed is returned when the signer rejects a request or
	// produces an empty result.
	ErrSigningFailed = errors.New("signer was unable to generate certificate")

	// ErrUnknownSSHCertType is returned for an SSH certificate type other
	// than host or user; the signer is never called in this case.
	ErrUnknownSSHCertType = errors.New("unknown ssh certificate type")
)

// Identity is one issuance result: the signed X.509 certificate with
// its signer chain, and, when requested, an SSH certificate with its
// own signer. Identities are built fresh per call and never persisted
// by this package.
type Identity struct {
	Name       string
	InstanceID string

	X509Certificate       string
	X509CertificateSigner string

	SSHCertificate       string
	SSHCertificateSigner string
}

// GenerateIdentity signs csr and returns the identity bundle for cn.
// keyUsage and expiryMins pass through to the signer. An empty signer
// result is a hard failure; no retry is attempted.
func (m *Manager) GenerateIdentity(csr, cn, keyUsage string, expiryMins int) (*Identity, error) {
	pemCert, err := m.signer.SignX509(csr, keyUsage, expiryMins)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	if pemCert == "" {
		return nil, ErrSigningFailed
	}

	return &Identity{
		Name:                  cn,
		X509Certificate:       pemCert,
		X509CertificateSigner: m.material.CACertificate(),
	}, nil
}

// GenerateSSHIdentity extends identity with an SSH certificate. An
// empty sshCsr means no SSH certificate was requested and the call
// succeeds without touching the identity or the signer. A certificate
// type other than host or user is rejected before any signer call.
func (m *Manager) GenerateSSHIdentity(identity *Identity, sshCsr, sshCertType string) error {
	if sshCsr == "" {
		return nil
	}
	if !signer.ValidSSHCertType(sshCertType) {
		return fmt.Errorf("%w: %q", ErrUnknownSSHCertType, sshCertType)
	}

	sshCert, err := m.signer.SignSSH(sshCsr)
	if err != nil {
		m.log.Error("unable to generate ssh certificate",
			"instance", identity.InstanceID, "name", identity.Name, "error", err)
		return fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	if sshCert == "" {
		m.log.Error("signer returned empty ssh certificate",
			"instance", identity.InstanceID, "name", identity.Name)
		return ErrSigningFailed
	}

	identity.SSHCertificate = sshCert
	identity.SSHCertificateSigner = m.material.SSHCertificate(sshCertType)
	return nil
}
