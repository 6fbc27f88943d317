package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAuthorizer answers per-resource and records every check.
type recordingAuthorizer struct {
	allow  map[string]bool
	checks []string
}

func (a *recordingAuthorizer) Access(action, resource string, principal Principal, trustDomain string) bool {
	a.checks = append(a.checks, action+" "+resource)
	return a.allow[resource]
}

func TestAuthorizeLaunchAllowed(t *testing.T) {
	auth := &recordingAuthorizer{allow: map[string]bool{
		ResourceInstance:     true,
		"sports:service.api": true,
	}}
	la := LaunchAuthorizer{Authorizer: auth}

	ok, reason := la.AuthorizeLaunch(SimplePrincipal("sys.provider.k8s"), "sports", "api")
	assert.True(t, ok)
	assert.Empty(t, reason)
	require.Equal(t, []string{
		"launch " + ResourceInstance,
		"launch sports:service.api",
	}, auth.checks)
}

func TestAuthorizeLaunchPlatformDeniedShortCircuits(t *testing.T) {
	auth := &recordingAuthorizer{allow: map[string]bool{
		"sports:service.api": true, // would pass, but must never be asked
	}}
	la := LaunchAuthorizer{Authorizer: auth}

	ok, reason := la.AuthorizeLaunch(SimplePrincipal("sys.provider.k8s"), "sports", "api")
	assert.False(t, ok)
	assert.Contains(t, reason, "sys.provider.k8s")
	require.Len(t, auth.checks, 1, "service-level check must not run after platform denial")
}

func TestAuthorizeLaunchServiceDenied(t *testing.T) {
	auth := &recordingAuthorizer{allow: map[string]bool{
		ResourceInstance: true,
	}}
	la := LaunchAuthorizer{Authorizer: auth}

	ok, reason := la.AuthorizeLaunch(SimplePrincipal("sys.provider.k8s"), "sports", "api")
	assert.False(t, ok)
	assert.Contains(t, reason, "sys.provider.k8s")
	assert.Contains(t, reason, "sports.api")
	require.Len(t, auth.checks, 2)
}
