// Package metrics exposes Prometheus collectors for assessment activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector groups the service counters. A nil *Collector is valid and
// records nothing.
type Collector struct {
	sessionsStarted   *prometheus.CounterVec
	responsesRecorded *prometheus.CounterVec
	finalized         *prometheus.CounterVec
	finalizeRaces     prometheus.Counter
	persistFailures   *prometheus.CounterVec
	severity          *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	shared      *Collector
)

// Default returns the collector registered with the global registry
func Default() *Collector {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew registers a new collector set with reg and panics on conflict.
// Tests should pass a fresh prometheus.NewRegistry().
func MustNew(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessd",
			Name:      "sessions_started_total",
			Help:      "Sessions created, by instrument.",
		}, []string{"instrument"}),
		responsesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessd",
			Name:      "responses_recorded_total",
			Help:      "Responses accepted, by phase.",
		}, []string{"phase"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessd",
			Name:      "sessions_finalized_total",
			Help:      "Finalize calls by outcome.",
		}, []string{"instrument", "outcome"}),
		finalizeRaces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assessd",
			Name:      "finalize_races_total",
			Help:      "Finalizes that found the session already completed in storage.",
		}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessd",
			Name:      "persistence_failures_total",
			Help:      "Storage failures by operation.",
		}, []string{"op"}),
		severity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assessd",
			Name:      "pi_gap_severity_total",
			Help:      "Completed dual-profile results by gap severity.",
		}, []string{"severity"}),
	}
	reg.MustRegister(c.sessionsStarted, c.responsesRecorded, c.finalized, c.finalizeRaces, c.persistFailures, c.severity)
	return c
}

func (c *Collector) SessionStarted(instrument string) {
	if c == nil {
		return
	}
	c.sessionsStarted.WithLabelValues(instrument).Inc()
}

func (c *Collector) ResponseRecorded(phase string) {
	if c == nil {
		return
	}
	c.responsesRecorded.WithLabelValues(phase).Inc()
}

// Finalized counts a finalize outcome: completed, incomplete, cached or failed
func (c *Collector) Finalized(instrument, outcome string) {
	if c == nil {
		return
	}
	c.finalized.WithLabelValues(instrument, outcome).Inc()
}

func (c *Collector) FinalizeRace() {
	if c == nil {
		return
	}
	c.finalizeRaces.Inc()
}

func (c *Collector) PersistFailure(op string) {
	if c == nil {
		return
	}
	c.persistFailures.WithLabelValues(op).Inc()
}

func (c *Collector) Severity(severity string) {
	if c == nil {
		return
	}
	c.severity.WithLabelValues(severity).Inc()
}
