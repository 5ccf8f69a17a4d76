package order

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/elbandito/acmeclient/account"
	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/core"
	"github.com/elbandito/acmeclient/jws"
)

// Challenge is one proof-of-control mechanism offered by an
// Authorization (http-01, dns-01, tls-alpn-01, ...).
type Challenge struct {
	core.Challenge
	authz *Authorization
}

// KeyAuthorization computes the RFC 8555 §8.1 key authorization for
// this challenge under acct's key: token || "." ||
// base64url(SHA-256(canonical JWK)), the last part being the RFC 7638
// JWK thumbprint.
func (c *Challenge) KeyAuthorization(acct *account.Account) (string, error) {
	thumbprint, err := jws.Thumbprint(acct.Key().Public())
	if err != nil {
		return "", err
	}
	return core.KeyAuthorization{Token: c.Token, Thumbprint: thumbprint}.String(), nil
}

// DNSRecordValue computes the dns-01 TXT record value:
// base64url(SHA-256(keyAuthorization)).
func (c *Challenge) DNSRecordValue(acct *account.Account) (string, error) {
	keyAuth, err := c.KeyAuthorization(acct)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(keyAuth))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// Validate triggers the challenge: the caller must already have
// placed the key-authorization artifact (HTTP file, DNS TXT record,
// TLS-ALPN certificate) before calling this. The server responds with
// the challenge in status Processing or Valid.
func (c *Challenge) Validate(ctx context.Context, acct *account.Account) error {
	resp, err := c.authz.order.tr.Post(ctx, c.URL, []byte("{}"), acct.Identity())
	if err != nil {
		return err
	}
	return c.absorb(resp.Body)
}

// PollReady polls the challenge (POST-as-GET) on interval, honoring
// any server Retry-After, until it reaches Valid. An Invalid challenge
// surfaces acmeerrors.TerminalFailure carrying its problem document.
func (c *Challenge) PollReady(ctx context.Context, interval time.Duration) error {
	return pollUntil(ctx, c.authz.order.clk, interval, func(ctx context.Context) (core.AcmeStatus, time.Duration, *core.ProblemDetails, error) {
		retryAfter, err := c.refresh(ctx)
		if err != nil {
			return "", 0, nil, err
		}
		return c.Status, retryAfter, c.Error, nil
	}, func(s core.AcmeStatus) bool { return s == core.StatusValid })
}

func (c *Challenge) refresh(ctx context.Context) (time.Duration, error) {
	resp, err := c.authz.order.tr.Post(ctx, c.URL, nil, c.authz.order.acct.Identity())
	if err != nil {
		return 0, err
	}
	if err := c.absorb(resp.Body); err != nil {
		return 0, err
	}
	return parseRetryAfter(resp.Header.Get("Retry-After")), nil
}

func (c *Challenge) absorb(body []byte) error {
	var wire core.Challenge
	if err := json.Unmarshal(body, &wire); err != nil {
		return acmeerrors.Wrap(acmeerrors.Protocol, err, "decoding challenge")
	}
	c.Challenge = wire
	return nil
}
