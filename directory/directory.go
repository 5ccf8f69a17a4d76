// Package directory discovers and caches an ACME server's directory
// object (RFC 8555 §7.1.1) and owns the single piece of mutable state
// associated with it: the replay-nonce cache shared by every
// authenticated request made against this server.
package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/acmemetrics"
	"github.com/elbandito/acmeclient/core"
	"github.com/elbandito/acmeclient/nonce"
)

// HTTPDoer is the transport contract this package (and every package
// built on top of it) consumes. *http.Client satisfies it, and tests
// may substitute their own implementation to pin CA roots or fake
// responses.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Directory is an immutable ACME directory plus the mutable nonce
// cache that every authenticated request against it shares. Once
// built, its Directory field is never mutated; only its nonce cache
// has interior mutability, guarded by its own mutex.
type Directory struct {
	core.Directory

	client HTTPDoer
	nonces *nonce.Cache
}

// Nonces exposes the nonce cache so package transport can consume and
// offer nonces without this package importing transport (which
// depends on directory, not the reverse).
func (d *Directory) Nonces() *nonce.Cache { return d.nonces }

// Client exposes the configured HTTP client so sibling packages can
// issue requests against this directory's server without redialing.
func (d *Directory) Client() HTTPDoer { return d.client }

// Builder constructs a Directory by GETting a discovery URL.
type Builder struct {
	url    string
	client HTTPDoer
	scope  *acmemetrics.Scope
}

// NewBuilder starts building a Directory discovered from url.
func NewBuilder(url string) *Builder {
	return &Builder{url: url, client: http.DefaultClient}
}

// HTTPClient overrides the HTTP client used for discovery and every
// subsequent request against this directory -- useful for pinning CA
// roots in tests.
func (b *Builder) HTTPClient(c HTTPDoer) *Builder {
	b.client = c
	return b
}

// Metrics attaches a Prometheus scope; nonce-cache refills will be
// counted against it once the Directory is built.
func (b *Builder) Metrics(scope *acmemetrics.Scope) *Builder {
	b.scope = scope
	return b
}

// Build performs the unauthenticated discovery GET and returns the
// resulting Directory.
func (b *Builder) Build(ctx context.Context) (*Directory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Transport, err, "building directory request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Transport, err, "fetching directory")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Transport, err, "reading directory response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, acmeerrors.New(acmeerrors.Protocol, "directory GET returned status %d", resp.StatusCode)
	}

	var dir core.Directory
	if err := json.Unmarshal(body, &dir); err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "decoding directory document")
	}
	if dir.NewNonce == "" || dir.NewAccount == "" || dir.NewOrder == "" {
		return nil, acmeerrors.New(acmeerrors.Protocol, "directory document is missing a required URL")
	}

	var opts []nonce.Option
	if b.scope != nil {
		opts = append(opts, nonce.WithRefillObserver(b.scope.IncNonceRefill))
	}

	return &Directory{
		Directory: dir,
		client:    b.client,
		nonces:    nonce.NewCache(b.client, dir.NewNonce, opts...),
	}, nil
}
