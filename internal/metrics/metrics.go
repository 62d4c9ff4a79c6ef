package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dirdrop"

// Metrics holds the Prometheus collectors for uploads and listings.
type Metrics struct {
	Uploads     *prometheus.CounterVec // by result and failure kind
	UploadBytes prometheus.Counter
	Listings    *prometheus.CounterVec // by status
}

// New registers the collectors with reg. A nil reg uses a private registry,
// which keeps tests and multiple servers in one process independent.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by result and failure kind",
		}, []string{"result", "kind"}),

		UploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Payload bytes written by successful uploads",
		}),

		Listings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_total",
			Help:      "Directory listings rendered, by status",
		}, []string{"status"}),
	}
}

// ObserveUpload records one upload attempt. kind is empty on success.
func (m *Metrics) ObserveUpload(result, kind string, bytes int64) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(result, kind).Inc()
	if bytes > 0 {
		m.UploadBytes.Add(float64(bytes))
	}
}

// ObserveListing records one listing request ("ok" or "not_readable").
func (m *Metrics) ObserveListing(status string) {
	if m == nil {
		return
	}
	m.Listings.WithLabelValues(status).Inc()
}
