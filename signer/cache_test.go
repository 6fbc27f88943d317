package signer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSigner records how many times each fetch method runs.
type countingSigner struct {
	caCalls    atomic.Int64
	sshCalls   atomic.Int64
	caResult   string
	caErr      error
	sshResults map[string]string
}

func (s *countingSigner) SignX509(csr, keyUsage string, expiryMins int) (string, error) {
	return "", errors.New("not implemented")
}

func (s *countingSigner) SignSSH(sshCsr string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *countingSigner) CACertificate() (string, error) {
	s.caCalls.Add(1)
	return s.caResult, s.caErr
}

func (s *countingSigner) SSHCertificate(kind string) (string, error) {
	s.sshCalls.Add(1)
	return s.sshResults[kind], nil
}

func TestCACertificateFetchedOnce(t *testing.T) {
	cs := &countingSigner{caResult: "CA-PEM"}
	cache := NewMaterialCache(cs, nil)

	for i := 0; i < 5; i++ {
		assert.Equal(t, "CA-PEM", cache.CACertificate())
	}
	assert.Equal(t, int64(1), cs.caCalls.Load())
}

func TestConcurrentMissesSingleFetch(t *testing.T) {
	cs := &countingSigner{caResult: "CA-PEM"}
	cache := NewMaterialCache(cs, nil)

	const workers = 32
	results := make([]string, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = cache.CACertificate()
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(1), cs.caCalls.Load(), "concurrent misses must collapse to one fetch")
	for i, r := range results {
		assert.Equal(t, "CA-PEM", r, "worker %d", i)
	}
}

func TestSSHSlotsIndependent(t *testing.T) {
	cs := &countingSigner{sshResults: map[string]string{
		SSHHostCert: "HOST-CA",
		SSHUserCert: "USER-CA",
	}}
	cache := NewMaterialCache(cs, nil)

	assert.Equal(t, "HOST-CA", cache.SSHCertificate(SSHHostCert))
	assert.Equal(t, int64(1), cs.sshCalls.Load(), "user slot must not be populated by host fetch")

	assert.Equal(t, "USER-CA", cache.SSHCertificate(SSHUserCert))
	assert.Equal(t, int64(2), cs.sshCalls.Load())

	// both slots now hit the cache
	assert.Equal(t, "HOST-CA", cache.SSHCertificate(SSHHostCert))
	assert.Equal(t, "USER-CA", cache.SSHCertificate(SSHUserCert))
	assert.Equal(t, int64(2), cs.sshCalls.Load())
}

func TestFailedFetchNotPublished(t *testing.T) {
	cs := &countingSigner{caErr: fmt.Errorf("signer down")}
	cache := NewMaterialCache(cs, nil)

	assert.Equal(t, "", cache.CACertificate())
	assert.Equal(t, "", cache.CACertificate())
	assert.Equal(t, int64(2), cs.caCalls.Load(), "failed fetch must allow a retry")

	// signer recovers; value is published and further calls hit the cache
	cs.caErr = nil
	cs.caResult = "CA-PEM"
	assert.Equal(t, "CA-PEM", cache.CACertificate())
	assert.Equal(t, "CA-PEM", cache.CACertificate())
	assert.Equal(t, int64(3), cs.caCalls.Load())
}

func TestUnknownSSHKind(t *testing.T) {
	cs := &countingSigner{}
	cache := NewMaterialCache(cs, nil)
	assert.Equal(t, "", cache.SSHCertificate("router"))
	assert.Equal(t, int64(0), cs.sshCalls.Load())
}

func TestValidSSHCertType(t *testing.T) {
	assert.True(t, ValidSSHCertType(SSHHostCert))
	assert.True(t, ValidSSHCertType(SSHUserCert))
	assert.False(t, ValidSSHCertType(""))
	assert.False(t, ValidSSHCertType("router"))
}
