// Package nonce implements the client-side replay-nonce cache
// described in RFC 8555 §7.2: a single-slot buffer, written whenever a
// response carries a Replay-Nonce header, drained on read, and
// refilled from the server's newNonce endpoint when empty.
//
// This is the one piece of mutable shared state a Directory owns; the
// mutex here is held only across the in-memory swap, never across an
// HTTP round trip.
package nonce

import (
	"context"
	"net/http"
	"sync"

	"github.com/elbandito/acmeclient/acmeerrors"
)

// Doer is the subset of *http.Client this package needs, so tests can
// substitute a fake transport without spinning up a real listener.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Cache holds at most one replay nonce. The zero value is ready to
// use once NewCache populates its fields.
type Cache struct {
	newNonceURL string
	client      Doer
	onRefill    func()

	mu    sync.Mutex
	nonce string
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithRefillObserver registers fn to be called every time the cache
// is empty and must fetch a fresh nonce from newNonce, letting callers
// (e.g. package acmemetrics) count refills without this package
// depending on a metrics library.
func WithRefillObserver(fn func()) Option {
	return func(c *Cache) { c.onRefill = fn }
}

// NewCache builds a Cache that refills from newNonceURL using client.
func NewCache(client Doer, newNonceURL string, opts ...Option) *Cache {
	c := &Cache{client: client, newNonceURL: newNonceURL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Offer stores a fresh nonce if header carries one, displacing
// whatever nonce (if any) was previously cached. It is called after
// every response, successful or not -- a Replay-Nonce on a 4xx error
// still refills the cache.
func (c *Cache) Offer(header http.Header) {
	n := header.Get("Replay-Nonce")
	if n == "" {
		return
	}
	c.mu.Lock()
	c.nonce = n
	c.mu.Unlock()
}

// Consume returns a nonce for the caller to sign with: the cached one
// if present (atomically clearing the slot), or a freshly fetched one
// from newNonce otherwise.
func (c *Cache) Consume(ctx context.Context) (string, error) {
	c.mu.Lock()
	n := c.nonce
	c.nonce = ""
	c.mu.Unlock()
	if n != "" {
		return n, nil
	}
	if c.onRefill != nil {
		c.onRefill()
	}
	return c.fetch(ctx)
}

// fetch performs a HEAD request against newNonce, falling back to GET
// for servers that don't support HEAD, and returns the Replay-Nonce
// header it carries.
func (c *Cache) fetch(ctx context.Context) (string, error) {
	n, err := c.fetchWithMethod(ctx, http.MethodHead)
	if err == nil {
		return n, nil
	}
	return c.fetchWithMethod(ctx, http.MethodGet)
}

func (c *Cache) fetchWithMethod(ctx context.Context, method string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.newNonceURL, nil)
	if err != nil {
		return "", acmeerrors.Wrap(acmeerrors.Transport, err, "building newNonce request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", acmeerrors.Wrap(acmeerrors.Transport, err, "fetching newNonce")
	}
	defer resp.Body.Close()

	n := resp.Header.Get("Replay-Nonce")
	if n == "" {
		return "", acmeerrors.New(acmeerrors.Protocol, "newNonce response carried no Replay-Nonce header")
	}
	return n, nil
}
