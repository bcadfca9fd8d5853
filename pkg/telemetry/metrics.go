package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of one sync engine instance.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	StoreWrites       *prometheus.CounterVec
	StoreWriteSeconds prometheus.Histogram
	EventsProcessed   *prometheus.CounterVec
	APIRequests       *prometheus.CounterVec
	APIRequestSeconds *prometheus.HistogramVec
	Reconnects        prometheus.Counter
	Connected         prometheus.Gauge
	Operations        *prometheus.HistogramVec
	MessagesPruned    prometheus.Counter

	// SlowThreshold makes Finish warn about traces slower than it. Zero disables.
	SlowThreshold time.Duration
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Write transactions by result.",
		}, []string{"result"}),
		StoreWriteSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatsync",
			Subsystem: "store",
			Name:      "write_duration_seconds",
			Help:      "Time spent running and committing a write transaction.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Realtime frames by event type and result.",
		}, []string{"type", "result"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "REST requests by endpoint and status code.",
		}, []string{"endpoint", "status"}),
		APIRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatsync",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "REST request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "realtime",
			Name:      "reconnects_total",
			Help:      "Realtime connection attempts after the first.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsync",
			Subsystem: "realtime",
			Name:      "connected",
			Help:      "1 while the realtime connection is open.",
		}),
		Operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatsync",
			Name:      "operation_duration_seconds",
			Help:      "Duration of traced operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		MessagesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "retention",
			Name:      "messages_pruned_total",
			Help:      "Messages removed from the local replica by retention.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.StoreWrites,
			m.StoreWriteSeconds,
			m.EventsProcessed,
			m.APIRequests,
			m.APIRequestSeconds,
			m.Reconnects,
			m.Connected,
			m.Operations,
			m.MessagesPruned,
		)
	}
	return m
}

func (m *Metrics) ObserveWrite(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StoreWrites.WithLabelValues(result(err)).Inc()
	m.StoreWriteSeconds.Observe(d.Seconds())
}

func (m *Metrics) ObserveEvent(eventType, res string) {
	if m == nil {
		return
	}
	m.EventsProcessed.WithLabelValues(eventType, res).Inc()
}

func (m *Metrics) ObserveRequest(endpoint, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(endpoint, status).Inc()
	m.APIRequestSeconds.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

func (m *Metrics) IncReconnects() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) AddPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MessagesPruned.Add(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
