// Package localsigner implements signer.Signer with a local CA keypair,
// for deployments that run without an external signing daemon. X.509
// requests are standard PEM CSRs; SSH requests are small JSON documents
// carrying the public key, certificate type, and principals.
package localsigner

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/certward/certward/signer"
)

var (
	// ErrInvalidCSR is returned when a certificate request cannot be
	// decoded or fails signature verification.
	ErrInvalidCSR = errors.New("invalid certificate request")

	// ErrUnknownKeyUsage is returned for a key usage profile other than
	// "client", "server", or empty.
	ErrUnknownKeyUsage = errors.New("unknown key usage profile")
)

// SSHRequest is the JSON document accepted by SignSSH.
type SSHRequest struct {
	PublicKey       string   `json:"publicKey"`
	CertType        string   `json:"certType"`
	Principals      []string `json:"principals,omitempty"`
	ValiditySeconds int64    `json:"validitySeconds,omitempty"`
}

const defaultSSHValidity = 30 * 24 * time.Hour

// CA is a signer.Signer backed by an in-process X.509 CA keypair and
// two SSH certificate-authority keys (host and user).
type CA struct {
	caCert *x509.Certificate
	caKey  crypto.Signer
	caPEM  string

	sshHostSigner ssh.Signer
	sshUserSigner ssh.Signer
}

var _ signer.Signer = (*CA)(nil)

// New builds a CA from PEM-encoded material: the CA certificate, its
// private key, and OpenSSH-format private keys for the host and user
// SSH certificate authorities.
func New(caCertPEM, caKeyPEM, sshHostKeyPEM, sshUserKeyPEM []byte) (*CA, error) {
	block, _ := pem.Decode(caCertPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("decoding CA certificate: no PEM block")
	}
	caCert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing CA certificate: %w", err)
	}

	caKey, err := parsePrivateKey(caKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing CA key: %w", err)
	}

	hostSigner, err := ssh.ParsePrivateKey(sshHostKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing SSH host CA key: %w", err)
	}
	userSigner, err := ssh.ParsePrivateKey(sshUserKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing SSH user CA key: %w", err)
	}

	return &CA{
		caCert:        caCert,
		caKey:         caKey,
		caPEM:         string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caCert.Raw})),
		sshHostSigner: hostSigner,
		sshUserSigner: userSigner,
	}, nil
}

// Generate creates a self-signed CA and fresh SSH CA keys. Used by the
// dev server and tests; production deployments load real material with
// New.
func Generate(commonName string) (*CA, error) {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-5 * time.Minute),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("creating CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	hostSigner, err := generateSSHSigner()
	if err != nil {
		return nil, err
	}
	userSigner, err := generateSSHSigner()
	if err != nil {
		return nil, err
	}

	return &CA{
		caCert:        caCert,
		caKey:         caKey,
		caPEM:         string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
		sshHostSigner: hostSigner,
		sshUserSigner: userSigner,
	}, nil
}

// SignX509 signs a PEM CSR. The issued certificate carries the CSR's
// subject, DNS names, and IP addresses; keyUsage selects client and/or
// server auth; expiryMins bounds the lifetime and is clamped to the CA
// certificate's own expiry.
func (ca *CA) SignX509(csr, keyUsage string, expiryMins int) (string, error) {
	block, _ := pem.Decode([]byte(csr))
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		return "", fmt.Errorf("%w: no PEM block", ErrInvalidCSR)
	}
	req, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCSR, err)
	}
	if err := req.CheckSignature(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCSR, err)
	}

	extUsage, err := extKeyUsage(keyUsage)
	if err != nil {
		return "", err
	}

	serial, err := randomSerial()
	if err != nil {
		return "", err
	}

	notAfter := time.Now().Add(time.Duration(expiryMins) * time.Minute)
	if expiryMins <= 0 || notAfter.After(ca.caCert.NotAfter) {
		notAfter = ca.caCert.NotAfter
	}

	template := &x509.Certificate{
		SerialNumber:   serial,
		Subject:        req.Subject,
		NotBefore:      time.Now().Add(-5 * time.Minute),
		NotAfter:       notAfter,
		KeyUsage:       x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:    extUsage,
		DNSNames:       req.DNSNames,
		IPAddresses:    req.IPAddresses,
		EmailAddresses: req.EmailAddresses,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, ca.caCert, req.PublicKey, ca.caKey)
	if err != nil {
		return "", fmt.Errorf("creating certificate: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})), nil
}

// SignSSH signs the JSON SSH request and returns the certificate in
// authorized-keys format, signed by the host or user CA per the
// request's certType.
func (ca *CA) SignSSH(sshCsr string) (string, error) {
	var req SSHRequest
	if err := json.Unmarshal([]byte(sshCsr), &req); err != nil {
		return "", fmt.Errorf("decoding ssh request: %w", err)
	}

	var caSigner ssh.Signer
	var certType uint32
	switch req.CertType {
	case signer.SSHHostCert:
		caSigner, certType = ca.sshHostSigner, ssh.HostCert
	case signer.SSHUserCert:
		caSigner, certType = ca.sshUserSigner, ssh.UserCert
	default:
		return "", fmt.Errorf("unknown ssh certificate type %q", req.CertType)
	}

	pubKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(req.PublicKey))
	if err != nil {
		return "", fmt.Errorf("parsing ssh public key: %w", err)
	}

	validity := defaultSSHValidity
	if req.ValiditySeconds > 0 {
		validity = time.Duration(req.ValiditySeconds) * time.Second
	}
	now := time.Now()

	serial, err := randomSerial()
	if err != nil {
		return "", err
	}
	cert := &ssh.Certificate{
		Key:             pubKey,
		Serial:          serial.Uint64(),
		CertType:        certType,
		KeyId:           uuid.NewString(),
		ValidPrincipals: req.Principals,
		ValidAfter:      uint64(now.Add(-5 * time.Minute).Unix()),
		ValidBefore:     uint64(now.Add(validity).Unix()),
	}
	if certType == ssh.UserCert {
		cert.Permissions = ssh.Permissions{
			Extensions: map[string]string{
				"permit-agent-forwarding": "",
				"permit-port-forwarding":  "",
				"permit-pty":              "",
			},
		}
	}

	if err := cert.SignCert(rand.Reader, caSigner); err != nil {
		return "", fmt.Errorf("signing ssh certificate: %w", err)
	}
	return string(ssh.MarshalAuthorizedKey(cert)), nil
}

// CACertificate returns the CA certificate PEM.
func (ca *CA) CACertificate() (string, error) {
	return ca.caPEM, nil
}

// SSHCertificate returns the SSH CA public key for kind in
// authorized-keys format.
func (ca *CA) SSHCertificate(kind string) (string, error) {
	switch kind {
	case signer.SSHHostCert:
		return string(ssh.MarshalAuthorizedKey(ca.sshHostSigner.PublicKey())), nil
	case signer.SSHUserCert:
		return string(ssh.MarshalAuthorizedKey(ca.sshUserSigner.PublicKey())), nil
	default:
		return "", fmt.Errorf("unknown ssh certificate kind %q", kind)
	}
}

// GenerateSelfSignedTLS returns an ephemeral self-signed server
// certificate for localhost, used to serve TLS when no pair is
// configured.
func GenerateSelfSignedTLS() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := randomSerial()
	if err != nil {
		return tls.Certificate{}, err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-5 * time.Minute),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("creating self-signed certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}, nil
}

func extKeyUsage(keyUsage string) ([]x509.ExtKeyUsage, error) {
	switch keyUsage {
	case "client":
		return []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}, nil
	case "server":
		return []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}, nil
	case "":
		return []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyUsage, keyUsage)
	}
}

func parsePrivateKey(keyPEM []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block")
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		s, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key type %T cannot sign", key)
		}
		return s, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unsupported key PEM type %q", block.Type)
	}
}

func generateSSHSigner() (ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return ssh.NewSignerFromKey(priv)
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generating serial: %w", err)
	}
	return serial, nil
}
