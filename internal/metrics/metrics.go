// Package metrics exposes flush activity of the writer to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "neobatch"

// Metrics holds the writer's collectors on a private registry.
type Metrics struct {
	Flushes          *prometheus.CounterVec
	EntitiesAccepted prometheus.Counter
	NodesCreated     prometheus.Counter
	LabelsAttached   prometheus.Counter
	RelationsCreated prometheus.Counter
	Duplicates       prometheus.Counter
	Skipped          prometheus.Counter
	Requeued         prometheus.Counter
	Rejected         prometheus.Counter
	Buffered         prometheus.Gauge
	KnownIdentities  prometheus.Gauge
	PhaseDuration    *prometheus.HistogramVec

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Flush cycles by result and, for failures, the phase that failed",
		}, []string{"result", "phase"}),
		EntitiesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_accepted_total",
			Help:      "Entities accepted into the queue",
		}),
		NodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_created_total",
			Help:      "Node creation commands committed",
		}),
		LabelsAttached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_attached_total",
			Help:      "Label attachment commands committed",
		}),
		RelationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relations_created_total",
			Help:      "Relation creation commands committed",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_nodes_total",
			Help:      "Nodes dropped because their identity was already known",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_entities_total",
			Help:      "Entities of unknown shape skipped by the compiler",
		}),
		Requeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requeued_entities_total",
			Help:      "Entities put back on the queue after a failed flush",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_entities_total",
			Help:      "Writes refused because the queue was full after a failed flush",
		}),
		Buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_entities",
			Help:      "Entities waiting in the queue",
		}),
		KnownIdentities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_identities",
			Help:      "Distinct node identities in the dedup index",
		}),
		PhaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_phase_duration_seconds",
			Help:      "Time spent per flush phase",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"phase"}),
	}

	m.registry.MustRegister(
		m.Flushes, m.EntitiesAccepted, m.NodesCreated, m.LabelsAttached,
		m.RelationsCreated, m.Duplicates, m.Skipped, m.Requeued,
		m.Rejected, m.Buffered, m.KnownIdentities, m.PhaseDuration,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObservePhase(phase string, start time.Time) {
	m.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
