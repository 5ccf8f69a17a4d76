// Package keypolicy decides which account-key types and sizes this
// client will sign with, and generates a default key when the caller
// doesn't supply one. It is modeled on boulder's goodkey.KeyPolicy,
// narrowed to the keys this client is willing to generate and sign
// with itself: RSA >= 2048 bits, or EC on P-256. Every other curve or
// key type is rejected.
package keypolicy

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/titanous/rocacheck"

	"github.com/elbandito/acmeclient/acmeerrors"
)

// DefaultRSAKeyBits is the bit length used when GenerateDefault is
// asked for a key and no preference is given.
const DefaultRSAKeyBits = 4096

// MinRSAKeyBits is the smallest RSA modulus this client will sign
// with.
const MinRSAKeyBits = 2048

// standardExponent is the only RSA public exponent this client
// accepts. Non-standard exponents are a hallmark of malformed or
// adversarially constructed keys; boulder's goodkey rejects them for
// the same reason.
const standardExponent = 65537

// smallPrimes are the factors boulder's goodkey checks the modulus
// against before bothering with anything more expensive. A modulus
// divisible by any of these is never a product of two large primes.
var smallPrimes = []int64{3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53}

// Validate checks that key is an acceptable account key: an RSA key
// of at least MinRSAKeyBits with a standard public exponent and a
// modulus that passes basic arithmetic sanity checks and the ROCA
// fingerprint test, or an ECDSA key on P-256. Anything else --
// including ECDSA on P-384/P-521, Ed25519, or any other crypto.Signer
// -- is rejected with acmeerrors.UnsupportedKey.
func Validate(key crypto.Signer) error {
	switch pub := key.Public().(type) {
	case *rsa.PublicKey:
		return validateRSA(pub)
	case *ecdsa.PublicKey:
		if pub.Curve != elliptic.P256() {
			return acmeerrors.New(acmeerrors.UnsupportedKey,
				"unsupported EC curve %s: only P-256 is accepted", pub.Curve.Params().Name)
		}
		return nil
	default:
		return acmeerrors.New(acmeerrors.UnsupportedKey, "unsupported key type %T", pub)
	}
}

func validateRSA(pub *rsa.PublicKey) error {
	if pub.N == nil {
		return acmeerrors.New(acmeerrors.UnsupportedKey, "RSA key has no modulus")
	}
	if pub.N.BitLen() < MinRSAKeyBits {
		return acmeerrors.New(acmeerrors.UnsupportedKey,
			"RSA key too small: %d bits (minimum %d)", pub.N.BitLen(), MinRSAKeyBits)
	}
	if pub.E != standardExponent {
		return acmeerrors.New(acmeerrors.UnsupportedKey,
			"RSA key exponent must be %d, got %d", standardExponent, pub.E)
	}

	modulus := pub.N
	if modulus.Bit(0) == 0 {
		return acmeerrors.New(acmeerrors.UnsupportedKey, "RSA modulus is even")
	}
	for _, p := range smallPrimes {
		if new(big.Int).Mod(modulus, big.NewInt(p)).Sign() == 0 {
			return acmeerrors.New(acmeerrors.UnsupportedKey, "RSA modulus is divisible by small prime %d", p)
		}
	}
	if rocacheck.IsWeak(pub) {
		return acmeerrors.New(acmeerrors.UnsupportedKey, "RSA key was generated by a ROCA-vulnerable Infineon library")
	}
	return nil
}

// GenerateDefault generates a fresh RSA-4096 account key, the default
// this client uses when AccountBuilder.PrivateKey is never called.
func GenerateDefault() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, DefaultRSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("acme: generating default account key: %w", err)
	}
	return key, nil
}
