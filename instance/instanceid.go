package instance

import (
	"crypto/x509"
	"encoding/pem"
	"strings"
)

// IDMarker is the well-known substring inside a SAN DNS entry that
// carries the instance identifier; the id is everything before it.
const IDMarker = ".instanceid."

// IDLookup classifies the result of an instance-id extraction. Both
// IDNotFound and IDParseError are recoverable "no instance id"
// outcomes; callers needing replay protection must treat such
// certificates as unverifiable.
type IDLookup int

const (
	// IDFound means a SAN DNS entry carried the marker.
	IDFound IDLookup = iota
	// IDNotFound means the certificate has no SAN DNS entry with the
	// marker.
	IDNotFound
	// IDParseError means the certificate (or its SAN extension) could not
	// be parsed.
	IDParseError
)

// InstanceIDFromCert scans the certificate's SAN DNS entries for the
// marker and returns the identifier preceding it.
func InstanceIDFromCert(cert *x509.Certificate) (string, IDLookup) {
	if cert == nil {
		return "", IDParseError
	}
	for _, dnsName := range cert.DNSNames {
		if idx := strings.Index(dnsName, IDMarker); idx != -1 {
			return dnsName[:idx], IDFound
		}
	}
	return "", IDNotFound
}

// InstanceIDFromPEM parses a PEM certificate and extracts its instance
// id. Undecodable input yields IDParseError rather than an error so
// callers can keep treating it like not-found (the historical
// behavior) or apply a stricter policy.
func InstanceIDFromPEM(certPEM string) (string, IDLookup) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil || block.Type != "CERTIFICATE" {
		return "", IDParseError
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return "", IDParseError
	}
	return InstanceIDFromCert(cert)
}
