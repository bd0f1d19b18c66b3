package backend

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates counters for one connection. Fields are updated
// with atomics so a scraper goroutine can read a consistent snapshot
// while the owning goroutine drives the connection.
type Metrics struct {
	messagesSent       atomic.Int64
	messagesDispatched atomic.Int64
	bytesQueued        atomic.Int64
	bytesRead          atomic.Int64
	bytesWritten       atomic.Int64
	protocolErrors     atomic.Int64
	fatalErrors        atomic.Int64
	objectsCreated     atomic.Int64
	objectsDestroyed   atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of a connection's counters.
type MetricsSnapshot struct {
	MessagesSent       int64
	MessagesDispatched int64
	BytesQueued        int64
	BytesRead          int64
	BytesWritten       int64
	ProtocolErrors     int64
	FatalErrors        int64
	ObjectsCreated     int64
	ObjectsDestroyed   int64
	LiveObjects        int64
}

// Metrics returns a snapshot of the connection's counters.
func (b *Backend) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		MessagesSent:       b.metrics.messagesSent.Load(),
		MessagesDispatched: b.metrics.messagesDispatched.Load(),
		BytesQueued:        b.metrics.bytesQueued.Load(),
		BytesRead:          b.metrics.bytesRead.Load(),
		BytesWritten:       b.metrics.bytesWritten.Load(),
		ProtocolErrors:     b.metrics.protocolErrors.Load(),
		FatalErrors:        b.metrics.fatalErrors.Load(),
		ObjectsCreated:     b.metrics.objectsCreated.Load(),
		ObjectsDestroyed:   b.metrics.objectsDestroyed.Load(),
		LiveObjects:        b.table.liveCount.Load(),
	}
}

// Collector adapts a Backend's counters to a prometheus.Collector.
type Collector struct {
	backend *Backend

	messagesSent       *prometheus.Desc
	messagesDispatched *prometheus.Desc
	bytesRead          *prometheus.Desc
	bytesWritten       *prometheus.Desc
	protocolErrors     *prometheus.Desc
	liveObjects        *prometheus.Desc
}

// NewCollector creates a prometheus collector over one backend.
func NewCollector(b *Backend) *Collector {
	return &Collector{
		backend: b,
		messagesSent: prometheus.NewDesc(
			"waywire_messages_sent_total",
			"Messages enqueued for sending.",
			nil, nil),
		messagesDispatched: prometheus.NewDesc(
			"waywire_messages_dispatched_total",
			"Inbound messages routed to handlers.",
			nil, nil),
		bytesRead: prometheus.NewDesc(
			"waywire_bytes_read_total",
			"Bytes read from the transport.",
			nil, nil),
		bytesWritten: prometheus.NewDesc(
			"waywire_bytes_written_total",
			"Bytes written to the transport.",
			nil, nil),
		protocolErrors: prometheus.NewDesc(
			"waywire_protocol_errors_total",
			"Fatal protocol errors observed.",
			nil, nil),
		liveObjects: prometheus.NewDesc(
			"waywire_live_objects",
			"Objects currently alive in the table.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messagesSent
	ch <- c.messagesDispatched
	ch <- c.bytesRead
	ch <- c.bytesWritten
	ch <- c.protocolErrors
	ch <- c.liveObjects
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.backend.Metrics()
	ch <- prometheus.MustNewConstMetric(c.messagesSent, prometheus.CounterValue, float64(s.MessagesSent))
	ch <- prometheus.MustNewConstMetric(c.messagesDispatched, prometheus.CounterValue, float64(s.MessagesDispatched))
	ch <- prometheus.MustNewConstMetric(c.bytesRead, prometheus.CounterValue, float64(s.BytesRead))
	ch <- prometheus.MustNewConstMetric(c.bytesWritten, prometheus.CounterValue, float64(s.BytesWritten))
	ch <- prometheus.MustNewConstMetric(c.protocolErrors, prometheus.CounterValue, float64(s.ProtocolErrors))
	ch <- prometheus.MustNewConstMetric(c.liveObjects, prometheus.GaugeValue, float64(s.LiveObjects))
}
