// Package authz performs the two-stage launch authorization handshake.
// The decision algorithm lives behind the Authorizer collaborator; this
// package owns only the call contract: which resources are checked, in
// what order, and how denials are reported.
package authz

import "fmt"

// ActionLaunch is the fixed action for every launch authorization check.
const ActionLaunch = "launch"

// ResourceInstance is the platform-level resource a provider must be
// authorized against before it may launch anything at all.
const ResourceInstance = "sys.auth:instance"

// Principal identifies the provider service requesting authorization.
type Principal interface {
	// FullName returns the fully qualified principal name, e.g.
	// "sys.provider.k8s".
	FullName() string
}

// Authorizer is the external authorization collaborator: a synchronous,
// side-effect-free query. No check is ever retried.
type Authorizer interface {
	Access(action, resource string, principal Principal, trustDomain string) bool
}

// LaunchAuthorizer runs the two launch checks against an Authorizer.
type LaunchAuthorizer struct {
	Authorizer Authorizer
}

// AuthorizeLaunch verifies that provider may launch instances for
// domain's service. Two checks run in order and both must pass:
//
//  1. provider is authorized against ResourceInstance (platform level);
//  2. provider is authorized against "<domain>:service.<service>"
//     (the service has opted in to this provider).
//
// The first failing check short-circuits; the returned reason names the
// provider and, for the second check, the denied service.
func (la LaunchAuthorizer) AuthorizeLaunch(provider Principal, domain, service string) (bool, string) {
	if !la.Authorizer.Access(ActionLaunch, ResourceInstance, provider, "") {
		return false, fmt.Sprintf("provider '%s' not authorized to launch instances",
			provider.FullName())
	}

	tenantResource := domain + ":service." + service
	if !la.Authorizer.Access(ActionLaunch, tenantResource, provider, "") {
		return false, fmt.Sprintf("provider '%s' not authorized to launch %s.%s instances",
			provider.FullName(), domain, service)
	}

	return true, ""
}

// SimplePrincipal is a Principal backed by a plain name, for callers
// that do not carry a richer credential object.
type SimplePrincipal string

// FullName returns the principal name.
func (p SimplePrincipal) FullName() string { return string(p) }
