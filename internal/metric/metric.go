// Package metric holds the Prometheus collectors shared by the core components.
// A nil *Metrics is valid and records nothing.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nutrigraph"

type Metrics struct {
	searches          *prometheus.CounterVec   // outcome: populated, empty, failed, superseded
	relationMutations *prometheus.CounterVec   // op, status
	catalogRefreshes  *prometheus.CounterVec   // kind, status
	backendDuration   *prometheus.HistogramVec // endpoint
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Semantic searches by outcome",
		}, []string{"outcome"}),

		relationMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relations",
			Name:      "mutations_total",
			Help:      "Relation create/delete calls by status",
		}, []string{"op", "status"}),

		catalogRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "refresh_total",
			Help:      "Catalog refreshes by entity kind and status",
		}, []string{"kind", "status"}),

		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend call duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
	}

	for _, c := range []prometheus.Collector{m.searches, m.relationMutations, m.catalogRefreshes, m.backendDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) RecordSearch(outcome string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRelationMutation(op string, err error) {
	if m == nil {
		return
	}
	m.relationMutations.WithLabelValues(op, status(err)).Inc()
}

func (m *Metrics) RecordCatalogRefresh(kind string, err error) {
	if m == nil {
		return
	}
	m.catalogRefreshes.WithLabelValues(kind, status(err)).Inc()
}

// ObserveBackend records how long a backend endpoint took to answer.
func (m *Metrics) ObserveBackend(endpoint string, d time.Duration) {
	if m == nil {
		return
	}
	m.backendDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}
