package jws

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/internal/acmetest"
)

func mustRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	acmetest.AssertNotError(t, err, "generating RSA key")
	return k
}

func mustECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	k, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	acmetest.AssertNotError(t, err, "generating EC key")
	return k
}

func decodeProtected(t *testing.T, m *Message) map[string]interface{} {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(m.Protected)
	acmetest.AssertNotError(t, err, "decoding protected header")
	var header map[string]interface{}
	acmetest.AssertNotError(t, json.Unmarshal(raw, &header), "unmarshaling protected header")
	return header
}

func TestSignRSAEmbedsJWK(t *testing.T) {
	key := mustRSAKey(t)
	msg, err := Sign("https://example.test/acme/new-account", "nonce-1", []byte(`{"termsOfServiceAgreed":true}`), Identity{Key: key})
	acmetest.AssertNotError(t, err, "signing")

	header := decodeProtected(t, msg)
	acmetest.AssertEquals(t, header["alg"], "RS256")
	acmetest.AssertEquals(t, header["nonce"], "nonce-1")
	_, hasJWK := header["jwk"]
	_, hasKid := header["kid"]
	acmetest.Assert(t, hasJWK, "RS256 header should carry jwk")
	acmetest.Assert(t, !hasKid, "RS256 header with no kid set should not carry kid")
}

func TestSignWithKidOmitsJWK(t *testing.T) {
	key := mustRSAKey(t)
	msg, err := Sign("https://example.test/acme/order", "nonce-2", []byte(""), Identity{Key: key, Kid: "https://example.test/acme/acct/1"})
	acmetest.AssertNotError(t, err, "signing")

	header := decodeProtected(t, msg)
	acmetest.AssertEquals(t, header["kid"], "https://example.test/acme/acct/1")
	_, hasJWK := header["jwk"]
	acmetest.Assert(t, !hasJWK, "kid-mode header should not also carry jwk")
}

func TestSignEmptyPayloadIsEmptyString(t *testing.T) {
	key := mustRSAKey(t)
	msg, err := Sign("https://example.test/acme/authz/1", "nonce-3", nil, Identity{Key: key, Kid: "kid"})
	acmetest.AssertNotError(t, err, "signing")
	acmetest.AssertEquals(t, msg.Payload, "")
}

func TestSignECUsesES256AndRawSignature(t *testing.T) {
	key := mustECKey(t)
	msg, err := Sign("https://example.test/acme/chall/1", "nonce-4", []byte("{}"), Identity{Key: key, Kid: "kid"})
	acmetest.AssertNotError(t, err, "signing")

	header := decodeProtected(t, msg)
	acmetest.AssertEquals(t, header["alg"], "ES256")

	sig, err := base64.RawURLEncoding.DecodeString(msg.Signature)
	acmetest.AssertNotError(t, err, "decoding signature")
	acmetest.AssertEquals(t, len(sig), 64)
}

func TestSignRejectsUnsupportedCurve(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	acmetest.AssertNotError(t, err, "generating P-384 key")
	_, err = Sign("https://example.test/", "nonce", []byte("{}"), Identity{Key: key})
	acmetest.AssertError(t, err, "P-384 key should be rejected")
	acmeErr, ok := acmeerrors.As(err)
	acmetest.Assert(t, ok, "error should be *acmeerrors.Error")
	acmetest.AssertEquals(t, acmeErr.Kind, acmeerrors.UnsupportedKey)
}

func TestDer2RawStripsLeadingZeroOnlyWhenPresent(t *testing.T) {
	// r has a true high byte >= 0x80, so its 32-byte value takes 33
	// bytes as a DER INTEGER (DER prepends 0x00 to avoid being read
	// as a negative number); s is small enough to need padding
	// rather than stripping. Both must come out as exactly 32 bytes.
	r := new(big.Int).SetBytes(append([]byte{0xFF}, make([]byte, 31)...))
	s := big.NewInt(42)

	der, err := marshalASN1Signature(r, s)
	acmetest.AssertNotError(t, err, "marshaling test ASN.1 signature")

	raw, err := der2Raw(der, 32)
	acmetest.AssertNotError(t, err, "der2Raw")
	acmetest.AssertEquals(t, len(raw), 64)
	acmetest.AssertEquals(t, raw[0], byte(0xFF))
	for _, b := range raw[32:63] {
		acmetest.AssertEquals(t, b, byte(0))
	}
	acmetest.AssertEquals(t, raw[63], byte(42))
}
