package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides hooks for metrics collection around the
// consume/route/publish pipeline. The deferred, republished and dropped
// counters distinguish the steady-state routing outcomes from true failures.
type MetricsCollector interface {
	IncReceived()
	IncProcessed()
	IncFailed()
	IncDeferred()
	IncRepublished()
	IncDropped()
	IncPublished()
	IncPublishFailed()
}

// InMemoryMetrics is a simple in-memory implementation for testing/demo
type InMemoryMetrics struct {
	Received      atomic.Int64
	Processed     atomic.Int64
	Failed        atomic.Int64
	Deferred      atomic.Int64
	Republished   atomic.Int64
	Dropped       atomic.Int64
	Published     atomic.Int64
	PublishFailed atomic.Int64
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{}
}

func (m *InMemoryMetrics) IncReceived()      { m.Received.Add(1) }
func (m *InMemoryMetrics) IncProcessed()     { m.Processed.Add(1) }
func (m *InMemoryMetrics) IncFailed()        { m.Failed.Add(1) }
func (m *InMemoryMetrics) IncDeferred()      { m.Deferred.Add(1) }
func (m *InMemoryMetrics) IncRepublished()   { m.Republished.Add(1) }
func (m *InMemoryMetrics) IncDropped()       { m.Dropped.Add(1) }
func (m *InMemoryMetrics) IncPublished()     { m.Published.Add(1) }
func (m *InMemoryMetrics) IncPublishFailed() { m.PublishFailed.Add(1) }

func (m *InMemoryMetrics) GetReceived() int64      { return m.Received.Load() }
func (m *InMemoryMetrics) GetProcessed() int64     { return m.Processed.Load() }
func (m *InMemoryMetrics) GetFailed() int64        { return m.Failed.Load() }
func (m *InMemoryMetrics) GetDeferred() int64      { return m.Deferred.Load() }
func (m *InMemoryMetrics) GetRepublished() int64   { return m.Republished.Load() }
func (m *InMemoryMetrics) GetDropped() int64       { return m.Dropped.Load() }
func (m *InMemoryMetrics) GetPublished() int64     { return m.Published.Load() }
func (m *InMemoryMetrics) GetPublishFailed() int64 { return m.PublishFailed.Load() }

// PrometheusMetrics exposes the pipeline counters through a Prometheus
// registry.
type PrometheusMetrics struct {
	received      prometheus.Counter
	processed     prometheus.Counter
	failed        prometheus.Counter
	deferred      prometheus.Counter
	republished   prometheus.Counter
	dropped       prometheus.Counter
	published     prometheus.Counter
	publishFailed prometheus.Counter
}

func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "retrytopic",
			Name:      name,
			Help:      help,
		})
	}
	return &PrometheusMetrics{
		received:      counter("records_received_total", "Total records fetched from the source topic"),
		processed:     counter("records_processed_total", "Total records processed successfully"),
		failed:        counter("records_failed_total", "Total records whose handler returned an error"),
		deferred:      counter("records_deferred_total", "Total records left in place on a deferred-redelivery signal"),
		republished:   counter("records_republished_total", "Total records forwarded to the next retry or dead-letter destination"),
		dropped:       counter("records_dropped_total", "Total records dropped after exhausting the retry chain"),
		published:     counter("records_published_total", "Total successful publishes"),
		publishFailed: counter("records_publish_failed_total", "Total publishes that failed after all attempts"),
	}
}

func (m *PrometheusMetrics) IncReceived()      { m.received.Inc() }
func (m *PrometheusMetrics) IncProcessed()     { m.processed.Inc() }
func (m *PrometheusMetrics) IncFailed()        { m.failed.Inc() }
func (m *PrometheusMetrics) IncDeferred()      { m.deferred.Inc() }
func (m *PrometheusMetrics) IncRepublished()   { m.republished.Inc() }
func (m *PrometheusMetrics) IncDropped()       { m.dropped.Inc() }
func (m *PrometheusMetrics) IncPublished()     { m.published.Inc() }
func (m *PrometheusMetrics) IncPublishFailed() { m.publishFailed.Inc() }
