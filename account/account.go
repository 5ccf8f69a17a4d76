// Package account implements newAccount (RFC 8555 §7.3): binding a
// signing key to a server-issued kid, optionally without creating a
// new account when onlyReturnExisting is set.
package account

import (
	"context"
	"crypto"
	"encoding/json"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/acmemetrics"
	"github.com/elbandito/acmeclient/core"
	"github.com/elbandito/acmeclient/directory"
	"github.com/elbandito/acmeclient/jws"
	"github.com/elbandito/acmeclient/keypolicy"
	"github.com/elbandito/acmeclient/transport"
)

// Account is a subscriber account bound to a signing key. Once built,
// Identity() can sign any further authenticated request on the
// account's behalf.
type Account struct {
	core.Account
	key crypto.Signer
	dir *directory.Directory
}

// Key returns the account's signing key.
func (a *Account) Key() crypto.Signer { return a.key }

// Directory returns the directory this account was created against,
// so sibling packages can build their own transports without this
// package importing them.
func (a *Account) Directory() *directory.Directory { return a.dir }

// Identity returns the jws.Identity this account signs with.
func (a *Account) Identity() jws.Identity {
	return jws.Identity{Key: a.key, Kid: a.Kid}
}

// Builder collects configuration for a newAccount request (RFC 8555
// §7.3) and performs it on Build.
type Builder struct {
	dir                  *directory.Directory
	key                  crypto.Signer
	contact              []string
	termsOfServiceAgreed bool
	onlyReturnExisting   bool
	scope                *acmemetrics.Scope
}

// NewBuilder starts building an account against dir.
func NewBuilder(dir *directory.Directory) *Builder {
	return &Builder{dir: dir}
}

// PrivateKey sets the account's signing key. If never called, Build
// generates a fresh default key via keypolicy.GenerateDefault.
func (b *Builder) PrivateKey(key crypto.Signer) *Builder {
	b.key = key
	return b
}

// Contact sets the account's contact URLs (e.g. "mailto:" addresses).
func (b *Builder) Contact(contact ...string) *Builder {
	b.contact = contact
	return b
}

// TermsOfServiceAgreed records the caller's agreement to the
// directory's terms of service.
func (b *Builder) TermsOfServiceAgreed(agreed bool) *Builder {
	b.termsOfServiceAgreed = agreed
	return b
}

// OnlyReturnExisting, when true, asks the server to return an existing
// account bound to the key instead of creating a new one; the server
// replies with accountDoesNotExist if no such account exists, which
// Build surfaces as an ordinary (non-retried) error.
func (b *Builder) OnlyReturnExisting(only bool) *Builder {
	b.onlyReturnExisting = only
	return b
}

// Metrics attaches a Prometheus scope that the transport used to
// perform newAccount will report request outcomes to.
func (b *Builder) Metrics(scope *acmemetrics.Scope) *Builder {
	b.scope = scope
	return b
}

// Build performs newAccount and returns the bound Account.
func (b *Builder) Build(ctx context.Context) (*Account, error) {
	key := b.key
	if key == nil {
		generated, err := keypolicy.GenerateDefault()
		if err != nil {
			return nil, err
		}
		key = generated
	}
	if err := keypolicy.Validate(key); err != nil {
		return nil, err
	}

	reqBody := core.Account{
		Contact:              b.contact,
		TermsOfServiceAgreed: b.termsOfServiceAgreed,
		OnlyReturnExisting:   b.onlyReturnExisting,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "encoding newAccount payload")
	}

	tr := transport.New(b.dir.Client(), b.dir.Nonces(), b.scope)
	resp, err := tr.Post(ctx, b.dir.NewAccount, payload, jws.Identity{Key: key})
	if err != nil {
		return nil, err
	}

	kid := resp.Header.Get("Location")
	if kid == "" {
		return nil, acmeerrors.New(acmeerrors.Protocol, "newAccount response carried no Location header")
	}

	var acct core.Account
	if err := json.Unmarshal(resp.Body, &acct); err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "decoding account response")
	}
	acct.Kid = kid

	return &Account{Account: acct, key: key, dir: b.dir}, nil
}
