package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/core"
)

// Authorization is one identifier's proof-of-control record within an
// Order, carrying the set of challenges the server offers to satisfy
// it.
type Authorization struct {
	core.Authorization
	order *Order
}

// Challenges wraps the authorization's current challenge list, giving
// each one a back-reference to this authorization so it can sign and
// poll on its own.
func (a *Authorization) Challenges() []*Challenge {
	out := make([]*Challenge, len(a.Authorization.Challenges))
	for i := range a.Authorization.Challenges {
		out[i] = &Challenge{Challenge: a.Authorization.Challenges[i], authz: a}
	}
	return out
}

// PollReady polls the authorization (POST-as-GET) on interval,
// honoring any server Retry-After, until it reaches Valid. Any other
// terminal status surfaces acmeerrors.TerminalFailure carrying
// whatever problem document the challenge that failed reported.
func (a *Authorization) PollReady(ctx context.Context, interval time.Duration) error {
	return pollUntil(ctx, a.order.clk, interval, func(ctx context.Context) (core.AcmeStatus, time.Duration, *core.ProblemDetails, error) {
		retryAfter, err := a.refresh(ctx)
		if err != nil {
			return "", 0, nil, err
		}
		return a.Status, retryAfter, a.firstChallengeProblem(), nil
	}, func(s core.AcmeStatus) bool { return s == core.StatusValid })
}

func (a *Authorization) firstChallengeProblem() *core.ProblemDetails {
	for _, c := range a.Authorization.Challenges {
		if c.Error != nil {
			return c.Error
		}
	}
	return nil
}

func (a *Authorization) refresh(ctx context.Context) (time.Duration, error) {
	resp, err := a.order.tr.Post(ctx, a.URL, nil, a.order.acct.Identity())
	if err != nil {
		return 0, err
	}
	var wire core.Authorization
	if err := json.Unmarshal(resp.Body, &wire); err != nil {
		return 0, acmeerrors.Wrap(acmeerrors.Protocol, err, "decoding authorization")
	}
	wire.URL = a.URL
	a.Authorization = wire
	return parseRetryAfter(resp.Header.Get("Retry-After")), nil
}
