package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pull outcomes.
const (
	OutcomeCompleted    = "completed"
	OutcomeRejected     = "rejected"
	OutcomePoolNotFound = "pool_not_found"
	OutcomeError        = "error"
)

// UnknownPool labels pulls whose pool id did not resolve. Ids come from
// clients and must not become label values.
const UnknownPool = "unknown"

// Metrics holds the pull collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	pulls        *prometheus.CounterVec
	draws        *prometheus.CounterVec
	ticketsSpent *prometheus.CounterVec
	pullDuration *prometheus.HistogramVec
}

// New registers the pull collectors plus the process and Go collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		pulls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tarot_house",
				Name:      "pulls_total",
				Help:      "Total number of pull requests by outcome.",
			},
			[]string{"pool", "mode", "outcome"},
		),
		draws: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tarot_house",
				Name:      "draws_total",
				Help:      "Total number of resolved draws by rarity tier.",
			},
			[]string{"pool", "tier"},
		),
		ticketsSpent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tarot_house",
				Name:      "tickets_spent_total",
				Help:      "Tickets debited by completed pulls.",
			},
			[]string{"pool"},
		),
		pullDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tarot_house",
				Name:      "pull_duration_seconds",
				Help:      "Duration of pull requests, debit included.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
			},
			[]string{"mode"},
		),
	}
	m.Registry.MustRegister(
		m.pulls,
		m.draws,
		m.ticketsSpent,
		m.pullDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObservePull records one finished pull request.
func (m *Metrics) ObservePull(pool, mode, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.pulls.WithLabelValues(pool, mode, outcome).Inc()
	m.pullDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

// ObserveDraw records one resolved draw.
func (m *Metrics) ObserveDraw(pool, tier string) {
	if m == nil {
		return
	}
	m.draws.WithLabelValues(pool, tier).Inc()
}

// ObserveSpend records tickets debited by a completed pull.
func (m *Metrics) ObserveSpend(pool string, tickets int64) {
	if m == nil {
		return
	}
	m.ticketsSpent.WithLabelValues(pool).Add(float64(tickets))
}
