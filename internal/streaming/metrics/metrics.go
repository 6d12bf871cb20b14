package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"auditstream/internal/streaming/models"
)

// Metrics provides observability for the streaming engine. All methods are
// nil-receiver safe so tests can run without a registry.
type Metrics struct {
	StreamCalls          *prometheus.CounterVec
	DeliveriesTotal      *prometheus.CounterVec
	DeliveryDuration     *prometheus.HistogramVec
	TruncatedPayloads    prometheus.Counter
	EligibleDestinations prometheus.Histogram
}

// New creates and registers all streaming metrics.
func New() *Metrics {
	return &Metrics{
		StreamCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditstream_stream_calls_total",
			Help: "Dispatch calls by active implementation path",
		}, []string{"path"}),
		DeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "auditstream_deliveries_total",
			Help: "Delivery attempts by destination kind and result",
		}, []string{"kind", "result"}),
		DeliveryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditstream_delivery_duration_seconds",
			Help:    "Duration of single delivery attempts by destination kind",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		TruncatedPayloads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "auditstream_truncated_payloads_total",
			Help: "Payloads elided to fit the size ceiling",
		}),
		EligibleDestinations: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "auditstream_eligible_destinations",
			Help:    "Eligible destinations resolved per dispatch",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
	}
}

// IncStreamCall records one dispatch under the given implementation path.
func (m *Metrics) IncStreamCall(path string) {
	if m == nil {
		return
	}
	m.StreamCalls.WithLabelValues(path).Inc()
}

// ObserveDelivery records one delivery attempt's result and duration.
func (m *Metrics) ObserveDelivery(kind models.DestinationKind, success bool, start time.Time) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.DeliveriesTotal.WithLabelValues(string(kind), result).Inc()
	m.DeliveryDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
}

// IncTruncatedPayload records one payload elided to fit the size ceiling.
func (m *Metrics) IncTruncatedPayload() {
	if m == nil {
		return
	}
	m.TruncatedPayloads.Inc()
}

// ObserveEligibleDestinations records how many destinations one dispatch
// resolved.
func (m *Metrics) ObserveEligibleDestinations(n int) {
	if m == nil {
		return
	}
	m.EligibleDestinations.Observe(float64(n))
}
