// Package jws builds and signs the RFC 8555 JWS Flattened JSON
// envelope that wraps every authenticated ACME request: the protected
// header (alg, nonce, url, and exactly one of jwk/kid), the payload,
// and the algorithm-appropriate signature.
//
// This is the one piece of this module the spec singles out as its
// hardest engineering, so the envelope and the ES256 DER-to-raw
// signature conversion are hand-built rather than delegated to a JOSE
// library's default serialization, which does not produce RFC 8555's
// exact three-field shape.
package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"math/big"

	"github.com/elbandito/acmeclient/acmeerrors"
)

// Message is the RFC 7515 Flattened JSON Serialization of a JWS: the
// exact three-field object ACME expects on the wire.
type Message struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// Identity names who is signing a request: the key, and optionally
// the key-identifier URL the server issued for it. When Kid is empty
// the protected header embeds the JWK instead, as required for the
// very first newAccount request.
type Identity struct {
	Key crypto.Signer
	Kid string
}

// Sign builds the Flattened JSON JWS over payload for url, using
// nonce as the anti-replay nonce and id as the signing identity.
//
// payload may be nil or empty to produce the literal empty-string
// payload member required by POST-as-GET; base64url of zero bytes is
// itself the empty string, so no special case is needed beyond never
// substituting a JSON "null" or "\"\"" for an empty payload.
func Sign(url, nonce string, payload []byte, id Identity) (*Message, error) {
	alg, err := algorithmFor(id.Key.Public())
	if err != nil {
		return nil, err
	}

	header := map[string]interface{}{
		"alg":   alg,
		"nonce": nonce,
		"url":   url,
	}
	if id.Kid != "" {
		header["kid"] = id.Kid
	} else {
		jwk, err := jwkJSON(id.Key.Public())
		if err != nil {
			return nil, err
		}
		header["jwk"] = jwk
	}

	protectedJSON, err := json.Marshal(header)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "encoding JWS protected header")
	}
	protected := base64.RawURLEncoding.EncodeToString(protectedJSON)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)

	signingInput := protected + "." + encodedPayload
	digest := sha256.Sum256([]byte(signingInput))

	rawSig, err := id.Key.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.UnsupportedKey, err, "signing JWS")
	}

	sigBytes := rawSig
	if alg == "ES256" {
		sigBytes, err = der2Raw(rawSig, 32)
		if err != nil {
			return nil, err
		}
	}

	return &Message{
		Protected: protected,
		Payload:   encodedPayload,
		Signature: base64.RawURLEncoding.EncodeToString(sigBytes),
	}, nil
}

// algorithmFor chooses the JWS alg for a public key, rejecting every
// key type and curve other than RSA and P-256 ECDSA.
func algorithmFor(pub crypto.PublicKey) (string, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return "RS256", nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return "", acmeerrors.New(acmeerrors.UnsupportedKey,
				"unsupported EC curve %s for JWS signing: only P-256 is accepted", k.Curve.Params().Name)
		}
		return "ES256", nil
	default:
		return "", acmeerrors.New(acmeerrors.UnsupportedKey, "unsupported key type %T for JWS signing", pub)
	}
}

// asn1Signature is the ASN.1 SEQUENCE of two INTEGERs (r, s) that
// crypto/ecdsa's crypto.Signer implementation returns.
type asn1Signature struct {
	R, S *big.Int
}

// der2Raw converts an ASN.1 DER-encoded ECDSA signature into the fixed
// 2*size-byte "r || s" concatenation JWS requires for ES256.
//
// Each of r and s is left-padded with zeros to exactly size bytes.
// The DER encoding of an INTEGER prepends a leading 0x00 byte whenever
// the value's high bit would otherwise be mistaken for a sign bit;
// that byte must be stripped only when it is actually present before
// padding, never unconditionally -- an unconditional strip corrupts
// any r or s whose true high byte is >= 0x80 but whose big.Int byte
// slice is already shorter than size: RFC 7515 appendix A.3 defines
// the JWS ES256 signature as the fixed-width concatenation, and only
// "strip iff present, then left-pad" round-trips every r/s value.
func der2Raw(der []byte, size int) ([]byte, error) {
	var sig asn1Signature
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "parsing ASN.1 ECDSA signature")
	}
	raw := make([]byte, 2*size)
	if err := copyPadded(raw[:size], sig.R, size); err != nil {
		return nil, err
	}
	if err := copyPadded(raw[size:], sig.S, size); err != nil {
		return nil, err
	}
	return raw, nil
}

// marshalASN1Signature is der2Raw's inverse, used by tests to build
// fixtures without hand-encoding ASN.1.
func marshalASN1Signature(r, s *big.Int) ([]byte, error) {
	return asn1.Marshal(asn1Signature{R: r, S: s})
}

func copyPadded(dst []byte, v *big.Int, size int) error {
	b := v.Bytes() // big-endian, no leading zero, possibly empty for v == 0
	if len(b) > size {
		return acmeerrors.New(acmeerrors.Protocol, "ECDSA signature component too large for %d-byte field", size)
	}
	copy(dst[size-len(b):], b)
	return nil
}
