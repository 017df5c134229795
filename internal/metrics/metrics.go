// Package metrics holds the prometheus instrumentation for the
// store-and-forward pipeline. Collectors are registered on an injected
// registry so tests can build isolated instances.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline groups the agent-side pipeline collectors.
type Pipeline struct {
	RecordsEnqueued *prometheus.CounterVec
	RecordsUploaded *prometheus.CounterVec
	UploadFailures  *prometheus.CounterVec
	EnqueueFailures prometheus.Counter
	CorruptEntries  prometheus.Counter
	UnknownEntries  prometheus.Counter
	QueuePending    prometheus.Gauge
	DeliveryLatency prometheus.Histogram
}

// Failure reasons recorded on UploadFailures.
const (
	ReasonNetwork = "network"
	ReasonStatus  = "status"
	ReasonRead    = "read"
)

// NewPipeline registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		RecordsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devpulse_records_enqueued_total",
			Help: "Records written to the durable queue.",
		}, []string{"origin"}),
		RecordsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devpulse_records_uploaded_total",
			Help: "Records accepted by the ingestion endpoint and removed from the queue.",
		}, []string{"origin"}),
		UploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "devpulse_upload_failures_total",
			Help: "Delivery attempts that left the entry in the queue, by reason.",
		}, []string{"reason"}),
		EnqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devpulse_enqueue_failures_total",
			Help: "Records lost because the queue could not accept them.",
		}),
		CorruptEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devpulse_corrupt_entries_total",
			Help: "Queue entries quarantined as unreadable.",
		}),
		UnknownEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "devpulse_unknown_entries_total",
			Help: "Queue entries skipped because their name matches no origin.",
		}),
		QueuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "devpulse_queue_pending",
			Help: "Entries pending at the start of the last upload cycle.",
		}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "devpulse_delivery_latency_seconds",
			Help:    "Wall time of one successful POST to an ingestion endpoint.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 11),
		}),
	}
	reg.MustRegister(
		p.RecordsEnqueued,
		p.RecordsUploaded,
		p.UploadFailures,
		p.EnqueueFailures,
		p.CorruptEntries,
		p.UnknownEntries,
		p.QueuePending,
		p.DeliveryLatency,
	)
	return p
}
