package order

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/jmhodges/clock"

	"github.com/elbandito/acmeclient/acmeerrors"
	"github.com/elbandito/acmeclient/core"
)

// refresher re-fetches one entity's status, returning the server's
// Retry-After hint (zero if absent) alongside the entity's current
// status and problem document.
type refresher func(ctx context.Context) (status core.AcmeStatus, retryAfter time.Duration, problem *core.ProblemDetails, err error)

// pollUntil repeatedly calls refresh until isSuccess reports the
// entity has reached the state the caller is waiting for, or the
// entity reaches a terminal state isSuccess does not accept, or ctx is
// cancelled. Between polls it sleeps for the larger of interval and
// any Retry-After the server supplied.
func pollUntil(ctx context.Context, clk clock.Clock, interval time.Duration, refresh refresher, isSuccess func(core.AcmeStatus) bool) error {
	for {
		status, retryAfter, problem, err := refresh(ctx)
		if err != nil {
			return err
		}
		if isSuccess(status) {
			return nil
		}
		if status.IsTerminal() {
			if problem != nil {
				return acmeerrors.Wrap(acmeerrors.TerminalFailure, problem, "reached terminal state %q", status)
			}
			return acmeerrors.New(acmeerrors.TerminalFailure, "reached terminal state %q", status)
		}

		wait := interval
		if retryAfter > wait {
			wait = retryAfter
		}
		if err := ctxSleep(ctx, clk, wait); err != nil {
			return err
		}
	}
}

func ctxSleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}

// parseRetryAfter parses a Retry-After header's delta-seconds or
// HTTP-date form, returning zero if the header is absent or
// unparseable.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
