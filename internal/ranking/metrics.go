package ranking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRankingRequests      = "ranking_requests_total"
	MetricRankingDuration      = "ranking_duration_seconds"
	MetricRankingItems         = "ranking_items_total"
	MetricRankingPromotedItems = "ranking_promoted_items_total"
)

// Algorithm label values.
const (
	AlgorithmRelevancy = "relevancy"
	AlgorithmNew       = "new"
	AlgorithmBest      = "best"
	AlgorithmMatch     = "match"
	AlgorithmQuality   = "quality"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics contains Prometheus metrics for ranking calls.
// All operations are thread-safe.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	items         *prometheus.CounterVec
	promotedItems prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRankingRequests,
			Help: "Total number of ranking calls by algorithm and outcome",
		}, []string{"algorithm", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRankingDuration,
			Help:    "Histogram of ranking call duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"algorithm"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRankingItems,
			Help: "Total number of content items ranked by algorithm",
		}, []string{"algorithm"}),
		promotedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRankingPromotedItems,
			Help: "Total number of items promoted by name similarity",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRequest records the outcome, duration and size of one ranking call.
func (m *Metrics) ObserveRequest(algorithm string, items int, elapsed time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.requests.WithLabelValues(algorithm, status).Inc()
	m.duration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
	m.items.WithLabelValues(algorithm).Add(float64(items))
}

// AddPromoted adds to the promoted items counter.
func (m *Metrics) AddPromoted(n int) {
	m.promotedItems.Add(float64(n))
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.duration,
		m.items,
		m.promotedItems,
	}
}
