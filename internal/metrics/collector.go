// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records gateway metrics.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Provider call metrics
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	providerTokensUsed      *prometheus.CounterVec

	// Pipeline metrics
	retryAttempts       *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec
	validationFailures  *prometheus.CounterVec

	// Streaming metrics
	streamChunks  *prometheus.CounterVec
	activeStreams *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector registers all gateway metrics on reg. Pass
// prometheus.DefaultRegisterer in production; tests pass a fresh registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.providerRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.providerRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Provider request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.providerTokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.retryAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts",
		},
		[]string{"provider"},
	)

	c.rateLimitRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of rate limited requests",
		},
		[]string{"provider"},
	)

	c.validationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of parameter validation failures",
		},
		[]string{"provider"},
	)

	c.streamChunks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Total number of streamed chunks",
		},
		[]string{"provider", "mode"}, // mode: native, synthesized
	)

	c.activeStreams = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of in-flight streaming responses",
		},
		[]string{"provider"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProviderRequest records one provider call outcome.
func (c *Collector) RecordProviderRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.providerRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.providerRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.providerTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.providerTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordRetryAttempt records one retry of a provider call.
func (c *Collector) RecordRetryAttempt(provider string) {
	c.retryAttempts.WithLabelValues(provider).Inc()
}

// RecordRateLimitRejection records a request rejected by the local limiter.
func (c *Collector) RecordRateLimitRejection(provider string) {
	c.rateLimitRejections.WithLabelValues(provider).Inc()
}

// RecordValidationFailure records a request rejected by parameter checks.
func (c *Collector) RecordValidationFailure(provider string) {
	c.validationFailures.WithLabelValues(provider).Inc()
}

// RecordStreamChunk records one emitted stream chunk.
func (c *Collector) RecordStreamChunk(provider, mode string) {
	c.streamChunks.WithLabelValues(provider, mode).Inc()
}

// StreamStarted marks a stream as in flight until the returned func runs.
func (c *Collector) StreamStarted(provider string) func() {
	c.activeStreams.WithLabelValues(provider).Inc()
	return func() { c.activeStreams.WithLabelValues(provider).Dec() }
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
