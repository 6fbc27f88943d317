// Package signer defines the certificate signer collaborator contract
// and a process-wide cache for signer material. The signing operations
// themselves live behind the Signer interface; this package only
// orchestrates and caches their results.
package signer

// SSH certificate-authority kinds recognized by SSHCertificate.
const (
	SSHHostCert = "host"
	SSHUserCert = "user"
)

// ValidSSHCertType reports whether certType names a recognized SSH
// certificate kind.
func ValidSSHCertType(certType string) bool {
	return certType == SSHHostCert || certType == SSHUserCert
}

// Signer is the external signing collaborator. An implementation may
// front a signing daemon, an HSM, or a local CA keypair. A signature
// request that the signer rejects yields an empty result or an error;
// callers treat both the same way.
type Signer interface {
	// SignX509 signs a PEM-encoded certificate request. keyUsage selects
	// the extended key usage profile ("client", "server", or empty for
	// both); expiryMins bounds the certificate lifetime in minutes.
	SignX509(csr, keyUsage string, expiryMins int) (string, error)

	// SignSSH signs an SSH certificate request and returns the signed
	// certificate in authorized-keys format.
	SignSSH(sshCsr string) (string, error)

	// CACertificate returns the PEM of the X.509 CA certificate that
	// anchors certificates produced by SignX509.
	CACertificate() (string, error)

	// SSHCertificate returns the SSH certificate-authority public
	// material for the given kind (SSHHostCert or SSHUserCert).
	SSHCertificate(kind string) (string, error)
}
