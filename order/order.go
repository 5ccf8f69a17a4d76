// Package order implements the order/authorization/challenge state
// machines of RFC 8555 §7.1.3-§7.1.6: create an order, enumerate its
// authorizations, drive their challenges to Valid, finalize with a
// CSR, and retrieve the issued certificate chain.
package order

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/jmhodges/clock"
	"golang.org/x/sync/errgroup"

	"github.com/elbandito/acmeclient/account"
	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/acmemetrics"
	"github.com/elbandito/acmeclient/core"
	"github.com/elbandito/acmeclient/transport"
)

// Order is a live ACME order bound to the account that created it.
type Order struct {
	core.Order
	acct *account.Account
	tr   *transport.Authenticated
	clk  clock.Clock
}

// Builder collects identifiers for a newOrder request (RFC 8555
// §7.4) and performs it on Build.
type Builder struct {
	acct        *account.Account
	identifiers []core.Identifier
	notBefore   string
	notAfter    string
	scope       *acmemetrics.Scope
	clk         clock.Clock
}

// NewBuilder starts building an order on behalf of acct.
func NewBuilder(acct *account.Account) *Builder {
	return &Builder{acct: acct}
}

// AddDNSIdentifier appends a dns-typed identifier for fqdn.
func (b *Builder) AddDNSIdentifier(fqdn string) *Builder {
	b.identifiers = append(b.identifiers, core.DNSIdentifier(fqdn))
	return b
}

// SetIdentifiers replaces the identifier list wholesale.
func (b *Builder) SetIdentifiers(ids []core.Identifier) *Builder {
	b.identifiers = ids
	return b
}

// NotBefore sets the optional notBefore field of the newOrder request.
func (b *Builder) NotBefore(t string) *Builder {
	b.notBefore = t
	return b
}

// NotAfter sets the optional notAfter field of the newOrder request.
func (b *Builder) NotAfter(t string) *Builder {
	b.notAfter = t
	return b
}

// Metrics attaches a Prometheus scope for requests this order issues.
func (b *Builder) Metrics(scope *acmemetrics.Scope) *Builder {
	b.scope = scope
	return b
}

// Clock overrides the clock used for poll-loop waits; tests substitute
// a fake clock to avoid real sleeps.
func (b *Builder) Clock(clk clock.Clock) *Builder {
	b.clk = clk
	return b
}

type newOrderRequest struct {
	Identifiers []core.Identifier `json:"identifiers"`
	NotBefore   string            `json:"notBefore,omitempty"`
	NotAfter    string            `json:"notAfter,omitempty"`
}

// Build performs newOrder and returns the created Order.
func (b *Builder) Build(ctx context.Context) (*Order, error) {
	if len(b.identifiers) == 0 {
		return nil, acmeerrors.New(acmeerrors.InvalidState, "order requires at least one identifier")
	}
	for _, id := range b.identifiers {
		if err := id.Validate(); err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(newOrderRequest{
		Identifiers: b.identifiers,
		NotBefore:   b.notBefore,
		NotAfter:    b.notAfter,
	})
	if err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "encoding newOrder payload")
	}

	dir := b.acct.Directory()
	tr := transport.New(dir.Client(), dir.Nonces(), b.scope)
	resp, err := tr.Post(ctx, dir.NewOrder, payload, b.acct.Identity())
	if err != nil {
		return nil, err
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, acmeerrors.New(acmeerrors.Protocol, "newOrder response carried no Location header")
	}

	var wire core.Order
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "decoding order response")
	}
	wire.URL = loc

	clk := b.clk
	if clk == nil {
		clk = clock.Default()
	}
	return &Order{Order: wire, acct: b.acct, tr: tr, clk: clk}, nil
}

// Authorizations fetches every authorization this order references,
// concurrently: the protocol hands back an independent list of
// resources, so there is no reason to fetch them one at a time.
func (o *Order) Authorizations(ctx context.Context) ([]*Authorization, error) {
	urls := o.Order.Authorizations
	out := make([]*Authorization, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			a, err := o.fetchAuthorization(gctx, u)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Order) fetchAuthorization(ctx context.Context, url string) (*Authorization, error) {
	resp, err := o.tr.Post(ctx, url, nil, o.acct.Identity())
	if err != nil {
		return nil, err
	}
	var wire core.Authorization
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return nil, acmeerrors.Wrap(acmeerrors.Protocol, err, "decoding authorization")
	}
	wire.URL = url
	return &Authorization{Authorization: wire, order: o}, nil
}

// Finalize submits csrDER to the order's finalize URL. The order must
// be in status Ready; call PollReady after creation (and after the
// order's authorizations have gone Valid) before calling Finalize.
func (o *Order) Finalize(ctx context.Context, csrDER []byte) error {
	if o.Status != core.StatusReady {
		return acmeerrors.New(acmeerrors.InvalidState, "cannot finalize order in status %q, must be ready", o.Status)
	}

	payload, err := json.Marshal(struct {
		CSR string `json:"csr"`
	}{CSR: base64.RawURLEncoding.EncodeToString(csrDER)})
	if err != nil {
		return acmeerrors.Wrap(acmeerrors.Protocol, err, "encoding finalize payload")
	}

	resp, err := o.tr.Post(ctx, o.Order.Finalize, payload, o.acct.Identity())
	if err != nil {
		return err
	}
	return o.absorb(resp)
}

// Certificate retrieves the PEM certificate chain (leaf first) for a
// Valid order.
func (o *Order) Certificate(ctx context.Context) ([]byte, error) {
	if o.Status != core.StatusValid {
		return nil, acmeerrors.New(acmeerrors.InvalidState, "cannot retrieve certificate for order in status %q, must be valid", o.Status)
	}
	if o.Order.Certificate == "" {
		return nil, acmeerrors.New(acmeerrors.Protocol, "valid order carries no certificate URL")
	}
	resp, err := o.tr.Post(ctx, o.Order.Certificate, nil, o.acct.Identity())
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// PollReady polls the order (POST-as-GET) on interval, honoring any
// server Retry-After, until it reaches Ready or Valid. A terminal
// Invalid order surfaces acmeerrors.TerminalFailure carrying the
// order's problem document.
func (o *Order) PollReady(ctx context.Context, interval time.Duration) error {
	return pollUntil(ctx, o.clk, interval, func(ctx context.Context) (core.AcmeStatus, time.Duration, *core.ProblemDetails, error) {
		retryAfter, err := o.refresh(ctx)
		if err != nil {
			return "", 0, nil, err
		}
		return o.Status, retryAfter, o.Error, nil
	}, func(s core.AcmeStatus) bool { return s == core.StatusReady || s == core.StatusValid })
}

func (o *Order) refresh(ctx context.Context) (time.Duration, error) {
	resp, err := o.tr.Post(ctx, o.URL, nil, o.acct.Identity())
	if err != nil {
		return 0, err
	}
	return parseRetryAfter(resp.Header.Get("Retry-After")), o.absorb(resp)
}

func (o *Order) absorb(resp *transport.Response) error {
	var wire core.Order
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return acmeerrors.Wrap(acmeerrors.Protocol, err, "decoding order")
	}
	wire.URL = o.URL
	o.Order = wire
	return nil
}
