package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "curio"

// Fetch outcomes recorded in curio_fetch_requests_total.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeTransport = "transport_error"
	OutcomeDecode    = "decode_error"
	OutcomeShape     = "unexpected_shape"
	OutcomeCancelled = "cancelled"
)

// Metrics holds the Prometheus collectors of a Client.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Items    *prometheus.GaugeVec
}

// NewMetrics creates and registers fetch metrics on reg, or on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "fetch",
				Name:      "requests_total",
				Help:      "Remote list fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "fetch",
				Name:      "duration_seconds",
				Help:      "Duration of remote list fetches in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"source"},
		),
		Items: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "fetch",
				Name:      "items",
				Help:      "Number of items returned by the last fetch of a source",
			},
			[]string{"source"},
		),
	}
}
