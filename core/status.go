// Package core defines the wire-level data model shared by every other
// package in this module: directories, identifiers, accounts, orders,
// authorizations, challenges and RFC 7807 problem documents. Its only
// intra-module dependency is acmeerrors, so that Identifier.Validate
// can return the same tagged error type most other exported operations
// do.
package core

// AcmeStatus is the lifecycle state of an order, authorization or
// challenge, as reported by the server.
type AcmeStatus string

// Order statuses (RFC 8555 §7.1.6).
const (
	StatusPending    = AcmeStatus("pending")
	StatusReady      = AcmeStatus("ready")
	StatusProcessing = AcmeStatus("processing")
	StatusValid      = AcmeStatus("valid")
	StatusInvalid    = AcmeStatus("invalid")
)

// Authorization statuses that don't already appear above.
const (
	StatusDeactivated = AcmeStatus("deactivated")
	StatusExpired     = AcmeStatus("expired")
	StatusRevoked     = AcmeStatus("revoked")
)

// Account statuses.
const (
	AccountStatusValid       = AcmeStatus("valid")
	AccountStatusDeactivated = AcmeStatus("deactivated")
	AccountStatusRevoked     = AcmeStatus("revoked")
)

// IsTerminal reports whether further polling is pointless: Valid,
// Invalid, Expired, Revoked and Deactivated are all absorbing states.
func (s AcmeStatus) IsTerminal() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusExpired, StatusRevoked, StatusDeactivated:
		return true
	default:
		return false
	}
}

// IdentifierType names a kind of identifier an Order or Authorization
// may carry. Only "dns" is ever emitted by this client, but arbitrary
// values may be received.
type IdentifierType string

// IdentifierDNS is the only identifier type this client emits.
const IdentifierDNS = IdentifierType("dns")

// Challenge type names, as specified in the ACME challenge registry.
const (
	ChallengeTypeHTTP01    = "http-01"
	ChallengeTypeDNS01     = "dns-01"
	ChallengeTypeTLSALPN01 = "tls-alpn-01"
)

// ACME resource URNs used as ProblemDetails.Type values.
const (
	ProblemTypeBadNonce            = "urn:ietf:params:acme:error:badNonce"
	ProblemTypeAccountDoesNotExist = "urn:ietf:params:acme:error:accountDoesNotExist"
)
