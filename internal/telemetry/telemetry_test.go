package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap/zaptest"

	"github.com/flowgate-ai/flowgate/config"
)

// saveAndRestoreGlobalProviders snapshots the global OTel providers and
// restores them via t.Cleanup so tests don't leak state.
func saveAndRestoreGlobalProviders(t *testing.T) {
	t.Helper()
	origTP := otel.GetTracerProvider()
	origMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})
}

func TestInitDisabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	p, err := Init(config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Nil(t, p.tp)
	assert.Nil(t, p.mp)
}

func TestInitEnabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	// Exporters connect lazily, so Init succeeds without a collector.
	p, err := Init(config.TelemetryConfig{
		Enabled:     true,
		ServiceName: "flowgate-test",
		Endpoint:    "localhost:4317",
		Insecure:    true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p.tp)
	require.NotNil(t, p.mp)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// Shutdown may fail to flush without a collector; it must still return.
	_ = p.Shutdown(ctx)
}

func TestShutdownNoop(t *testing.T) {
	assert.NoError(t, (&Providers{}).Shutdown(context.Background()))

	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}
