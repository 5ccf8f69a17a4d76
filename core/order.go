package core

import "time"

// Order is the wire representation of an ACME order object
// (RFC 8555 §7.1.3). The behavior that drives it through its state
// machine lives in package order; this type is the data it carries.
type Order struct {
	Status         AcmeStatus      `json:"status"`
	Identifiers    []Identifier    `json:"identifiers"`
	NotBefore      string          `json:"notBefore,omitempty"`
	NotAfter       string          `json:"notAfter,omitempty"`
	Error          *ProblemDetails `json:"error,omitempty"`
	Authorizations []string        `json:"authorizations"`
	Finalize       string          `json:"finalize"`
	Certificate    string          `json:"certificate,omitempty"`

	// URL is not part of the JSON wire body; it is the order's own
	// Location URL, used to re-fetch and poll it.
	URL string `json:"-"`
}

// Authorization is the wire representation of an ACME authorization
// object (RFC 8555 §7.1.4).
type Authorization struct {
	Identifier Identifier  `json:"identifier"`
	Status     AcmeStatus  `json:"status"`
	Expires    time.Time   `json:"expires,omitempty"`
	Challenges []Challenge `json:"challenges"`
	Wildcard   bool        `json:"wildcard,omitempty"`

	// URL is not part of the JSON wire body.
	URL string `json:"-"`
}

// Challenge is the wire representation of an ACME challenge object
// (RFC 8555 §8). A challenge carries a single validation mechanism.
type Challenge struct {
	Type      string          `json:"type"`
	URL       string          `json:"url"`
	Status    AcmeStatus      `json:"status"`
	Validated time.Time       `json:"validated,omitempty"`
	Error     *ProblemDetails `json:"error,omitempty"`
	Token     string          `json:"token,omitempty"`
}
