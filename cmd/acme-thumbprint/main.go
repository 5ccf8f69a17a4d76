// acme-thumbprint computes the JWK thumbprint and, given a challenge
// token, the key authorization for a PEM-encoded account key -- a
// standalone diagnostic in the spirit of calc_prefix.go, for checking
// what a CA will compute against the same key.
package main

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"

	"github.com/elbandito/acmeclient/core"
	"github.com/elbandito/acmeclient/jws"
	"github.com/elbandito/acmeclient/keypolicy"
)

func main() {
	keyPath := flag.String("key", "", "path to a PEM-encoded RSA or EC private key")
	token := flag.String("token", "", "challenge token; if set, also prints the key authorization")
	flag.Parse()

	if *keyPath == "" {
		fmt.Fprintln(os.Stderr, "-key is required")
		os.Exit(1)
	}

	signer, err := loadSigner(*keyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading key: %s\n", err)
		os.Exit(1)
	}
	if err := keypolicy.Validate(signer); err != nil {
		fmt.Fprintf(os.Stderr, "key rejected: %s\n", err)
		os.Exit(1)
	}

	thumbprint, err := jws.Thumbprint(signer.Public())
	if err != nil {
		fmt.Fprintf(os.Stderr, "computing thumbprint: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("thumbprint: %s\n", thumbprint)

	if *token == "" {
		return
	}
	keyAuth := core.KeyAuthorization{Token: *token, Thumbprint: thumbprint}.String()
	fmt.Printf("key authorization: %s\n", keyAuth)
}

func loadSigner(path string) (crypto.Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unrecognized private key format: %w", err)
	}
	switch k := key.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
		return k.(crypto.Signer), nil
	default:
		return nil, fmt.Errorf("unsupported key type %T", key)
	}
}
