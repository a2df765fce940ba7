package telemetry_test

import (
	"context"
	"testing"

	"github.com/staffhub/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{Enabled: false}, nil)
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(context.Background()))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProvider_ExportsSpans(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	exporter := tracetest.NewInMemoryExporter()
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:       true,
		SamplingRatio: 1.0,
		ServiceName:   "staffhub-test",
	}, zap.NewNop(), telemetry.WithSpanExporter(exporter))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	_, span := telemetry.StartSpan(context.Background(), "integration.sync_run",
		telemetry.WithAttribute(telemetry.SpanAttrSyncType, "full"),
	)
	span.End()

	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "integration.sync_run", spans[0].Name)
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope.Name)

	var serviceName string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			serviceName = kv.Value.AsString()
		}
	}
	assert.Equal(t, "staffhub-test", serviceName)

	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProvider_ZeroRatioDropsRootSpans(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	exporter := tracetest.NewInMemoryExporter()
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:       true,
		SamplingRatio: 0,
		ServiceName:   "staffhub-test",
	}, nil, telemetry.WithSpanExporter(exporter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := telemetry.StartSpan(context.Background(), "dropped")
	span.End()

	require.NoError(t, tp.ForceFlush(context.Background()))
	assert.Empty(t, exporter.GetSpans())
}
