package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/arap/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "receivable", "auto_allocate",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, "rcv-1"),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "receivable.auto_allocate", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, "rcv-1", attrMap(spans[0].Attributes())[telemetry.SpanAttrPaymentID].AsString())
}

func TestStartSpan_DefaultsToInternal(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "aging.generate_all")
	span.End()

	require.Len(t, sr.Ended(), 1)
	assert.Equal(t, trace.SpanKindInternal, sr.Ended()[0].SpanKind())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)
	customerID := uuid.New()

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, customerID,
		telemetry.SpanAttrBatchSize, 12,
		"ratio", 0.5,
		"partial", true,
		"numbers", []string{"INV-1", "INV-2"},
		42, "non-string key is skipped",
		"dangling",
	)
	telemetry.SetAttribute(span, telemetry.SpanAttrAmount, "1500.00")
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, customerID.String(), attrs[telemetry.SpanAttrCustomerID].AsString())
	assert.Equal(t, int64(12), attrs[telemetry.SpanAttrBatchSize].AsInt64())
	assert.Equal(t, 0.5, attrs["ratio"].AsFloat64())
	assert.True(t, attrs["partial"].AsBool())
	assert.Equal(t, []string{"INV-1", "INV-2"}, attrs["numbers"].AsStringSlice())
	assert.Equal(t, "1500.00", attrs[telemetry.SpanAttrAmount].AsString())
	assert.NotContains(t, attrs, "dangling")
	assert.Len(t, attrs, 6)
}

func TestRecordError_And_SetOK(t *testing.T) {
	sr := setupTestTracer(t)

	_, failed := telemetry.StartSpan(context.Background(), "failed")
	telemetry.RecordError(failed, errors.New("amount exceeds outstanding"))
	failed.End()

	_, ok := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(ok, nil)
	telemetry.SetOK(ok)
	ok.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "amount exceeds outstanding", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	assert.Empty(t, spans[1].Events())
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "release")
	telemetry.AddEvent(span, "cascade", "payment_id", "p-1", "document_id", "s-1")
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "cascade", events[0].Name)
	assert.Equal(t, "s-1", attrMap(events[0].Attributes)["document_id"].AsString())
}

func TestNilSpanHelpers(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.SetAttribute(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
}

func TestTraceAndSpanIDs(t *testing.T) {
	setupTestTracer(t)

	assert.Empty(t, telemetry.GetTraceID(context.Background()))
	assert.Empty(t, telemetry.GetSpanID(context.Background()))

	ctx, parent := telemetry.StartSpan(context.Background(), "parent")
	defer parent.End()
	childCtx, child := telemetry.StartSpan(ctx, "child")
	defer child.End()

	assert.Equal(t, parent.SpanContext().TraceID().String(), telemetry.GetTraceID(childCtx))
	assert.Equal(t, child.SpanContext().SpanID().String(), telemetry.GetSpanID(childCtx))
	assert.NotEqual(t, telemetry.GetSpanID(ctx), telemetry.GetSpanID(childCtx))
}
