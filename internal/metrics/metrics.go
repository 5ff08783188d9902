// Package metrics exposes Prometheus instrumentation for the ledger. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Trade outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	registry      *prometheus.Registry
	trades        *prometheus.CounterVec
	tradeDuration *prometheus.HistogramVec
	tradeVolume   *prometheus.CounterVec
	tokensCreated *prometheus.CounterVec
	feedErrors    prometheus.Counter
}

// New creates the ledger collectors and registers them on a private registry
// alongside the Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinplay_trades_total",
			Help: "Trade attempts by direction and outcome.",
		}, []string{"direction", "outcome"}),
		tradeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coinplay_trade_duration_seconds",
			Help:    "Wall time of a trade unit of work, lock waits included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"direction"}),
		tradeVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinplay_trade_base_volume_total",
			Help: "Base currency moved by committed trades.",
		}, []string{"direction"}),
		tokensCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coinplay_tokens_created_total",
			Help: "Token creation attempts by outcome.",
		}, []string{"outcome"}),
		feedErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coinplay_feed_publish_errors_total",
			Help: "Trade events that could not be published to the market feed.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.trades, m.tradeDuration, m.tradeVolume, m.tokensCreated, m.feedErrors,
	)
	return m
}

// ObserveTrade records one finished trade attempt.
func (m *Metrics) ObserveTrade(direction, outcome string, baseAmount int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(direction, outcome).Inc()
	m.tradeDuration.WithLabelValues(direction).Observe(elapsed.Seconds())
	if outcome == OutcomeCommitted && baseAmount > 0 {
		m.tradeVolume.WithLabelValues(direction).Add(float64(baseAmount))
	}
}

// ObserveTokenCreated records one token creation attempt.
func (m *Metrics) ObserveTokenCreated(outcome string) {
	if m == nil {
		return
	}
	m.tokensCreated.WithLabelValues(outcome).Inc()
}

// FeedPublishFailed counts a dropped market feed event.
func (m *Metrics) FeedPublishFailed() {
	if m == nil {
		return
	}
	m.feedErrors.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome maps an operation error to an outcome label.
func Outcome(err error, business bool) string {
	switch {
	case err == nil:
		return OutcomeCommitted
	case business:
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
