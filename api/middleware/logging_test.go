package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flowgate-ai/flowgate/internal/metrics"
)

func TestLoggingAssignsRequestID(t *testing.T) {
	h := NewLogging(zap.NewNop(), nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestLoggingKeepsCallerRequestID(t *testing.T) {
	h := NewLogging(zap.NewNop(), nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "given-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "given-id", rec.Header().Get("X-Request-ID"))
}

func TestLoggingRecordsStatusAndMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("flowgate_mw_test", reg, nil)

	h := NewLogging(zap.New(core), collector).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil))

	entries := logs.FilterMessage("request").All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusBadGateway), fields["status"])
	assert.Equal(t, "/v1/chat/completions", fields["path"])

	count, err := promtest.GatherAndCount(reg, "flowgate_mw_test_http_requests_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoggingDefaultStatusIsOK(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewLogging(zap.New(core), nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("implicit 200"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	entries := logs.FilterMessage("request").All()
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
}
