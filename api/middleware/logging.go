package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/api/handlers"
	"github.com/flowgate-ai/flowgate/internal/metrics"
)

// Logging logs every request and feeds the HTTP metrics. It assigns a
// request ID returned in the X-Request-ID header.
type Logging struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewLogging creates the logging middleware. metrics may be nil.
func NewLogging(logger *zap.Logger, collector *metrics.Collector) *Logging {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logging{
		logger:  logger.With(zap.String("middleware", "logging")),
		metrics: collector,
	}
}

// Wrap applies the middleware to next.
func (l *Logging) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rw := handlers.NewResponseWriter(w)
		start := time.Now()
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		l.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.StatusCode),
			zap.Duration("duration", duration),
			zap.String("remote", r.RemoteAddr),
		)
		if l.metrics != nil {
			l.metrics.RecordHTTPRequest(r.Method, r.URL.Path, rw.StatusCode, duration)
		}
	})
}
