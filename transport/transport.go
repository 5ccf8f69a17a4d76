// Package transport performs authenticated ACME requests: consume a
// nonce, build and sign the JWS envelope, POST it, and offer back
// whatever nonce the response carries, retrying on badNonce
// (RFC 8555 §6.5) up to a bounded number of attempts.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/acmemetrics"
	"github.com/elbandito/acmeclient/core"
	"github.com/elbandito/acmeclient/jws"
)

// maxBadNonceRetries bounds the badNonce retry loop. RFC 8555 §6.5
// expects a client to retry "once" in the common case; a small cap
// guards against a server that persistently rejects nonces.
const maxBadNonceRetries = 3

// NoncePool is the subset of *nonce.Cache this package consumes. It is
// an interface so tests can substitute a fake without a live Directory.
type NoncePool interface {
	Consume(ctx context.Context) (string, error)
	Offer(header http.Header)
}

// Doer is the HTTP contract this package consumes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Authenticated issues JWS-signed requests against one ACME server on
// behalf of one signing identity.
type Authenticated struct {
	client Doer
	nonces NoncePool
	scope  *acmemetrics.Scope
}

// New builds an Authenticated transport over client, drawing nonces
// from nonces and, if scope is non-nil, reporting request outcomes to
// it.
func New(client Doer, nonces NoncePool, scope *acmemetrics.Scope) *Authenticated {
	return &Authenticated{client: client, nonces: nonces, scope: scope}
}

// Response is a decoded authenticated response: the raw body, the
// response headers (Location and Retry-After live here), and the
// status code.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Post signs payload as identity and POSTs it to url, retrying with a
// fresh nonce on a badNonce problem document, for at most
// maxBadNonceRetries attempts in all. An empty payload (nil or
// zero-length, as for POST-as-GET) still produces a valid Flattened
// JWS with the empty string as its payload member.
func (a *Authenticated) Post(ctx context.Context, url string, payload []byte, identity jws.Identity) (*Response, error) {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < maxBadNonceRetries; attempt++ {
		resp, err := a.attempt(ctx, url, payload, identity)
		if err == nil {
			a.scope.ObserveRequest("success", time.Since(start))
			return resp, nil
		}
		lastErr = err
		if !acmeerrors.Is(err, acmeerrors.BadNonce) {
			a.scope.ObserveRequest("error", time.Since(start))
			return nil, err
		}
		if attempt+1 < maxBadNonceRetries {
			a.scope.IncBadNonceRetry()
		}
	}
	a.scope.ObserveRequest("badNonceExhausted", time.Since(start))
	return nil, lastErr
}

func (a *Authenticated) attempt(ctx context.Context, url string, payload []byte, identity jws.Identity) (*Response, error) {
	n, err := a.nonces.Consume(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := jws.Sign(url, n, payload, identity)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "encoding JWS envelope")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Transport, err, "building request")
	}
	req.Header.Set("Content-Type", "application/jose+json")

	httpResp, err := a.client.Do(req)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Transport, err, "performing request")
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Transport, err, "reading response body")
	}

	// A Replay-Nonce on an error response is still a good nonce.
	a.nonces.Offer(httpResp.Header)

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: respBody}, nil
	}

	problem, perr := decodeProblem(respBody)
	if perr != nil {
		return nil, acmeerrors.New(acmeerrors.Protocol, "server returned status %d with undecodable body", httpResp.StatusCode)
	}
	if problem.IsType(core.ProblemTypeBadNonce) {
		return nil, acmeerrors.New(acmeerrors.BadNonce, "server rejected nonce")
	}
	return nil, acmeerrors.FromProblem(problem)
}

func decodeProblem(body []byte) (*core.ProblemDetails, error) {
	var p core.ProblemDetails
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
