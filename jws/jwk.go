package jws

import (
	"crypto"
	"encoding/base64"
	"encoding/json"

	"github.com/elbandito/acmeclient/acmeerrors"
	jose "gopkg.in/go-jose/go-jose.v2"
)

// jwkJSON returns the JSON Web Key encoding of pub, suitable for
// embedding as the "jwk" member of a JWS protected header. It
// delegates to go-jose's JSONWebKey, which emits exactly the required
// RSA ({kty,e,n}) or EC ({kty,crv,x,y}) members for the two key types
// this signer accepts.
func jwkJSON(pub crypto.PublicKey) (json.RawMessage, error) {
	jwk := jose.JSONWebKey{Key: pub}
	if !jwk.IsPublic() {
		return nil, acmeerrors.New(acmeerrors.UnsupportedKey, "jwk encoding requires a public key")
	}
	b, err := jwk.MarshalJSON()
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.UnsupportedKey, err, "encoding JWK")
	}
	return json.RawMessage(b), nil
}

// Thumbprint computes the RFC 7638 JWK thumbprint of pub: SHA-256 over
// the JWK serialized with lexicographically sorted member names and no
// whitespace, base64url-encoded with no padding. This is the only
// JSON serialization in this module that requires canonical key
// ordering; go-jose.JSONWebKey.Thumbprint implements exactly that
// canonicalization.
func Thumbprint(pub crypto.PublicKey) (string, error) {
	jwk := jose.JSONWebKey{Key: pub}
	sum, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", acmeerrors.Wrap(acmeerrors.UnsupportedKey, err, "computing JWK thumbprint")
	}
	return base64.RawURLEncoding.EncodeToString(sum), nil
}
