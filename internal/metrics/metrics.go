// Package metrics defines the Prometheus collectors exported by the worker
// and the coordinator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "distsort"

// Worker holds the collectors of one worker process.
type Worker struct {
	Connections     prometheus.Gauge
	Requests        prometheus.Counter
	RequestErrors   prometheus.Counter
	ElementsSorted  prometheus.Counter
	RequestDuration prometheus.Histogram
	MergeRounds     prometheus.Counter
}

// NewWorker registers the worker collectors with reg.
func NewWorker(reg prometheus.Registerer) *Worker {
	f := promauto.With(reg)
	return &Worker{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "worker", Name: "connections",
			Help: "Connections currently open.",
		}),
		Requests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "requests_total",
			Help: "Sort requests answered.",
		}),
		RequestErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "connection_errors_total",
			Help: "Connections closed because of an I/O or protocol error.",
		}),
		ElementsSorted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "elements_sorted_total",
			Help: "Elements sorted across all requests.",
		}),
		RequestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "sort_duration_seconds",
			Help:    "Time spent sorting one request payload.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		MergeRounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "merge_rounds_total",
			Help: "Tournament merge rounds run to recombine chunk sorts.",
		}),
	}
}

// Coordinator holds the collectors of the coordinator process.
type Coordinator struct {
	Dispatches       *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	ElementsMerged   prometheus.Counter
	RunDuration      prometheus.Histogram
}

// NewCoordinator registers the coordinator collectors with reg.
func NewCoordinator(reg prometheus.Registerer) *Coordinator {
	f := promauto.With(reg)
	return &Coordinator{
		Dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "coordinator", Name: "dispatches_total",
			Help: "Partition dispatches by outcome.",
		}, []string{"outcome"}),
		DispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "coordinator", Name: "dispatch_duration_seconds",
			Help:    "Round trip of one partition to a worker and back.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"endpoint"}),
		ElementsMerged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "coordinator", Name: "elements_merged_total",
			Help: "Elements in final merged sequences.",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "coordinator", Name: "run_duration_seconds",
			Help:    "Wall time from dispatch to final merge.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
}

// Handler serves the collectors registered with g in the text exposition
// format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
