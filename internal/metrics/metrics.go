// Package metrics records client-side request and upload counters.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors bazaar updates. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploads         *prometheus.CounterVec
	uploadedBytes   prometheus.Counter
}

// New registers the bazaar collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "api_requests_total",
			Help:      "API requests by endpoint and HTTP status code (0 for transport errors).",
		}, []string{"endpoint", "code"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bazaar",
			Name:      "api_request_duration_seconds",
			Help:      "API request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "uploads_total",
			Help:      "Media units uploaded, by result.",
		}, []string{"result"}),
		uploadedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bazaar",
			Name:      "uploaded_bytes_total",
			Help:      "Bytes transferred to object storage.",
		}),
	}
}

// ObserveRequest records one API round trip.
func (m *Metrics) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveUpload records the outcome of one media unit upload.
func (m *Metrics) ObserveUpload(ok bool, bytes int) {
	if m == nil {
		return
	}
	if !ok {
		m.uploads.WithLabelValues("error").Inc()
		return
	}
	m.uploads.WithLabelValues("ok").Inc()
	m.uploadedBytes.Add(float64(bytes))
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all metrics in the Prometheus text format, suitable
// for a node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
