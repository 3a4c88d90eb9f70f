package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fruitvision/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncPredictions(outcome string)
	ObserveStoreDuration(op string, duration time.Duration)
	IncStoreErrors(op string)
}

// Prediction outcome labels for IncPredictions.
const (
	OutcomeNew       = "new"
	OutcomeDuplicate = "duplicate"
	OutcomeUpdated   = "updated"
)

type MetricsProvider struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	predictionsTotal *prometheus.CounterVec
	storeDuration    *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncPredictions(outcome string) {
	m.predictionsTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsProvider) ObserveStoreDuration(op string, duration time.Duration) {
	m.storeDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncStoreErrors(op string) {
	m.storeErrors.WithLabelValues(op).Inc()
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fruitvision_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fruitvision_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fruitvision_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fruitvision_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		predictionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fruitvision_predictions_total",
			Help: "Total number of saved predictions by outcome",
		}, []string{"outcome"}),

		storeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fruitvision_store_duration_seconds",
			Help:    "Duration of backing store operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		storeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fruitvision_store_errors_total",
			Help: "Total number of backing store errors",
		}, []string{"op"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncPredictions(_ string)                          {}
func (n *noopMetrics) ObserveStoreDuration(_ string, _ time.Duration)   {}
func (n *noopMetrics) IncStoreErrors(_ string)                          {}
