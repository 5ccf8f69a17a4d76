package nonce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elbandito/acmeclient/internal/acmetest"
)

func TestOfferThenConsumeIsNoop(t *testing.T) {
	c := NewCache(http.DefaultClient, "https://example.test/new-nonce")

	h := http.Header{}
	h.Set("Replay-Nonce", "abc123")
	c.Offer(h)

	n, err := c.Consume(context.Background())
	acmetest.AssertNotError(t, err, "consume")
	acmetest.AssertEquals(t, n, "abc123")

	// cache is drained: a second consume must go to the network.
	c.mu.Lock()
	cached := c.nonce
	c.mu.Unlock()
	acmetest.AssertEquals(t, cached, "")
}

func TestOfferIgnoresMissingHeader(t *testing.T) {
	c := NewCache(http.DefaultClient, "https://example.test/new-nonce")
	c.Offer(http.Header{})
	c.mu.Lock()
	cached := c.nonce
	c.mu.Unlock()
	acmetest.AssertEquals(t, cached, "")
}

func TestConsumeFallsBackToHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Fatalf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Replay-Nonce", "fresh-nonce")
	}))
	defer srv.Close()

	c := NewCache(srv.Client(), srv.URL)
	n, err := c.Consume(context.Background())
	acmetest.AssertNotError(t, err, "consume")
	acmetest.AssertEquals(t, n, "fresh-nonce")
}

func TestConsumeFallsBackToGetWhenHeadFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case http.MethodGet:
			w.Header().Set("Replay-Nonce", "via-get")
		}
	}))
	defer srv.Close()

	c := NewCache(srv.Client(), srv.URL)
	n, err := c.Consume(context.Background())
	acmetest.AssertNotError(t, err, "consume")
	acmetest.AssertEquals(t, n, "via-get")
}

func TestConsumeFailsWithoutReplayNonceHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewCache(srv.Client(), srv.URL)
	_, err := c.Consume(context.Background())
	acmetest.AssertError(t, err, "consume without Replay-Nonce should fail")
}
