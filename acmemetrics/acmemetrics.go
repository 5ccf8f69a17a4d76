// Package acmemetrics instruments the transport and nonce layers with
// Prometheus collectors, the metrics stack sheurich-boulder's go.mod
// carries (prometheus/client_golang), re-targeted from a server's
// request-serving metrics to a client's request-issuing metrics.
package acmemetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scope bundles the collectors this module registers. A nil *Scope is
// valid and every method on it is a no-op, so instrumentation is
// optional: callers who don't want Prometheus wiring simply never
// construct one.
type Scope struct {
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	badNonceRetries prometheus.Counter
	nonceRefills    prometheus.Counter
}

// NewScope registers this module's collectors with reg and returns a
// Scope that reports to them.
func NewScope(reg prometheus.Registerer) (*Scope, error) {
	s := &Scope{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acme_transport_requests_total",
			Help: "Authenticated ACME requests issued, labeled by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "acme_transport_request_duration_seconds",
			Help:    "Time spent performing one authenticated ACME request, including retries.",
			Buckets: prometheus.DefBuckets,
		}),
		badNonceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acme_transport_bad_nonce_retries_total",
			Help: "Requests retried after the server reported badNonce.",
		}),
		nonceRefills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acme_nonce_cache_refills_total",
			Help: "Times the nonce cache was empty and had to be refilled from newNonce.",
		}),
	}
	for _, c := range []prometheus.Collector{s.requests, s.requestDuration, s.badNonceRetries, s.nonceRefills} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ObserveRequest records the outcome and wall-clock duration of one
// logical authenticated request (all its badNonce retries included).
func (s *Scope) ObserveRequest(outcome string, d time.Duration) {
	if s == nil {
		return
	}
	s.requests.WithLabelValues(outcome).Inc()
	s.requestDuration.Observe(d.Seconds())
}

// IncBadNonceRetry records one badNonce-triggered retry.
func (s *Scope) IncBadNonceRetry() {
	if s == nil {
		return
	}
	s.badNonceRetries.Inc()
}

// IncNonceRefill records one empty-cache refill from newNonce.
func (s *Scope) IncNonceRefill() {
	if s == nil {
		return
	}
	s.nonceRefills.Inc()
}
