package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartSpan_AttributesAndKind(t *testing.T) {
	recorder := setupRecorder(t)
	runID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "integration.sync_run",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, runID),
		telemetry.WithAttribute(telemetry.SpanAttrRecords, 12),
		telemetry.WithAttribute("partial", true),
		telemetry.WithSpanKind(trace.SpanKindConsumer),
	)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, trace.SpanKindConsumer, ended[0].SpanKind())

	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, runID.String(), attrs[telemetry.SpanAttrRunID].AsString())
	assert.Equal(t, int64(12), attrs[telemetry.SpanAttrRecords].AsInt64())
	assert.True(t, attrs["partial"].AsBool())
}

func TestStartServiceSpan_Name(t *testing.T) {
	recorder := setupRecorder(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "mapping", "validate")
	span.End()

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "mapping.validate", recorder.Ended()[0].Name())
}

func TestSetAttributes_SkipsNonStringKeys(t *testing.T) {
	recorder := setupRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "attrs")
	telemetry.SetAttributes(span,
		"system_type", "jira",
		42, "ignored",
		"ratio", 0.5,
		"dangling",
	)
	span.End()

	attrs := attrMap(recorder.Ended()[0].Attributes())
	assert.Len(t, attrs, 2)
	assert.Equal(t, "jira", attrs["system_type"].AsString())
	assert.Equal(t, 0.5, attrs["ratio"].AsFloat64())
}

func TestRecordErrorAndSetOK(t *testing.T) {
	recorder := setupRecorder(t)

	_, failed := telemetry.StartSpan(context.Background(), "failed")
	telemetry.RecordError(failed, errors.New("adapter timeout"))
	failed.End()

	_, ok := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(ok, nil)
	telemetry.SetOK(ok)
	ok.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "adapter timeout", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)

	assert.Equal(t, codes.Ok, ended[1].Status().Code)
	assert.Empty(t, ended[1].Events())
}

func TestAddEvent(t *testing.T) {
	recorder := setupRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "events")
	telemetry.AddEvent(span, "watermark_advanced", "records", 3)
	span.End()

	events := recorder.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "watermark_advanced", events[0].Name)
	assert.Equal(t, int64(3), attrMap(events[0].Attributes)["records"].AsInt64())
}

func TestGetTraceID(t *testing.T) {
	setupRecorder(t)

	assert.Empty(t, telemetry.GetTraceID(context.Background()))

	ctx, span := telemetry.StartSpan(context.Background(), "traced")
	defer span.End()
	assert.Equal(t, span.SpanContext().TraceID().String(), telemetry.GetTraceID(ctx))
}

func TestHelpers_NilSpan(t *testing.T) {
	// Should not panic
	telemetry.SetAttributes(nil, "k", "v")
	telemetry.RecordError(nil, errors.New("x"))
	telemetry.SetOK(nil)
	telemetry.AddEvent(nil, "e")
}
