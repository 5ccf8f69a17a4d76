package csrutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"strings"
	"testing"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/core"
	"github.com/elbandito/acmeclient/internal/acmetest"
)

func TestBuildSetsCNAndSANs(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	acmetest.AssertNotError(t, err, "generating key")

	der, err := Build([]core.Identifier{core.DNSIdentifier("example.test"), core.DNSIdentifier("www.example.test")}, key)
	acmetest.AssertNotError(t, err, "building CSR")

	csr, err := x509.ParseCertificateRequest(der)
	acmetest.AssertNotError(t, err, "parsing CSR")
	acmetest.AssertEquals(t, csr.Subject.CommonName, "example.test")
	acmetest.AssertDeepEquals(t, csr.DNSNames, []string{"example.test", "www.example.test"})
	acmetest.AssertNotError(t, csr.CheckSignature(), "CSR signature should verify")
}

func TestBuildRejectsNoIdentifiers(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	acmetest.AssertNotError(t, err, "generating key")

	_, err = Build(nil, key)
	acmetest.AssertError(t, err, "empty identifier list should fail")
	acmetest.Assert(t, acmeerrors.Is(err, acmeerrors.InvalidState), "should be InvalidState")
}

func TestBuildRejectsOverlongCN(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	acmetest.AssertNotError(t, err, "generating key")

	long := strings.Repeat("a", maxCNLength+1) + ".test"
	_, err = Build([]core.Identifier{core.DNSIdentifier(long)}, key)
	acmetest.AssertError(t, err, "overlong CN should fail")
}
