package core

import (
	"strings"

	"github.com/miekg/dns"

	"github.com/elbandito/acmeclient/acmeerrors"
)

// Identifier is a {type, value} pair identifying a subject the caller
// wants a certificate for. The client only ever emits IdentifierDNS,
// but arbitrary types may arrive on an Order or Authorization fetched
// from the server.
type Identifier struct {
	Type  IdentifierType `json:"type"`
	Value string         `json:"value"`
}

// DNSIdentifier builds a dns-typed Identifier for fqdn.
func DNSIdentifier(fqdn string) Identifier {
	return Identifier{Type: IdentifierDNS, Value: fqdn}
}

// Validate checks that a dns-typed identifier's Value is a syntactically
// sane domain name: only letters, digits, hyphens and dots, within the
// label and name length limits dns.IsDomainName checks. Identifiers of
// other types are not validated here; the server is the authority on
// whether it accepts them.
func (id Identifier) Validate() error {
	if id.Type != IdentifierDNS {
		return nil
	}
	name := strings.TrimPrefix(id.Value, "*.")
	_, ok := dns.IsDomainName(name)
	for _, r := range name {
		if !(r == '-' || r == '.' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			ok = false
		}
	}
	if name == "" || !ok {
		return acmeerrors.New(acmeerrors.InvalidState, "%q is not a valid DNS identifier", id.Value)
	}
	return nil
}

// IsWildcard reports whether the identifier names a wildcard domain
// ("*.example.com").
func (id Identifier) IsWildcard() bool {
	return id.Type == IdentifierDNS && strings.HasPrefix(id.Value, "*.")
}
