// Package csrutil builds the PKCS#10 certificate signing request
// submitted to finalize an order (RFC 8555 §7.4): subject CN is the
// first identifier, SANs cover every identifier, signed by a
// caller-supplied certificate key distinct from the account key.
package csrutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/core"
)

// maxCNLength mirrors the CA/Browser Forum limit on a certificate's
// subject common name.
const maxCNLength = 64

// Build constructs a DER-encoded CSR for identifiers, signed by key.
// identifiers must be non-empty and the first value, which serves as
// the subject CN, must fit within maxCNLength; the other values are
// not length-checked.
func Build(identifiers []core.Identifier, key crypto.Signer) ([]byte, error) {
	if len(identifiers) == 0 {
		return nil, acmeerrors.New(acmeerrors.InvalidState, "CSR requires at least one identifier")
	}

	names := make([]string, len(identifiers))
	for i, id := range identifiers {
		names[i] = id.Value
	}
	if len(names[0]) > maxCNLength {
		return nil, acmeerrors.New(acmeerrors.InvalidState, "identifier %q is longer than %d bytes, cannot serve as CN", names[0], maxCNLength)
	}

	sigAlg, err := signatureAlgorithmFor(key.Public())
	if err != nil {
		return nil, err
	}

	template := &x509.CertificateRequest{
		Subject:            pkix.Name{CommonName: names[0]},
		DNSNames:           names,
		SignatureAlgorithm: sigAlg,
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.UnsupportedKey, err, "creating certificate request")
	}
	return der, nil
}

func signatureAlgorithmFor(pub crypto.PublicKey) (x509.SignatureAlgorithm, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return x509.SHA256WithRSA, nil
	case *ecdsa.PublicKey:
		return x509.ECDSAWithSHA256, nil
	default:
		return 0, acmeerrors.New(acmeerrors.UnsupportedKey, "unsupported certificate key type %T", pub)
	}
}
