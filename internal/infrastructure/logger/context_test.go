package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestFromContext(t *testing.T) {
	l, _ := observed()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))

	assert.NotNil(t, FromContext(context.Background()))
	assert.NotNil(t, FromContext(context.WithValue(context.Background(), loggerKey, "not a logger")))
}

func TestWithJobIDAndActorID(t *testing.T) {
	l, recorded := observed()

	ctx, jobLogger := WithJobID(context.Background(), l, "aging-daily")
	ctx, actorLogger := WithActorID(ctx, jobLogger, "7c1e")

	assert.Equal(t, "aging-daily", GetJobID(ctx))
	assert.Equal(t, "7c1e", GetActorID(ctx))
	assert.Same(t, actorLogger, FromContext(ctx))

	L(ctx).Info("snapshot written")
	require.Len(t, recorded.All(), 1)
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "aging-daily", fields["job_id"])
	assert.Equal(t, "7c1e", fields["actor_id"])

	assert.Empty(t, GetJobID(context.Background()))
	assert.Empty(t, GetActorID(context.Background()))
}

func TestTraceCorrelation(t *testing.T) {
	ctx := spanContext(t)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx))
	assert.Empty(t, GetTraceID(context.Background()))

	l, recorded := observed()
	same := WithTraceContext(context.Background(), l)
	assert.Same(t, l, same)

	WithTraceContext(ctx, l).Info("traced")
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
}

func TestContextLogger_ExplicitLoggerGetsContextFields(t *testing.T) {
	l, recorded := observed()
	ctx, _ := WithJobID(spanContext(t), zap.NewNop(), "auto-allocate")

	cl := WithLogger(ctx, l).With(zap.String("receipt", "RCV-9"))
	cl.Debug("d")
	cl.Warn("w")
	cl.Error("e")

	require.Len(t, recorded.All(), 3)
	for _, entry := range recorded.All() {
		fields := entry.ContextMap()
		assert.Equal(t, "auto-allocate", fields["job_id"])
		assert.Equal(t, "RCV-9", fields["receipt"])
		assert.Contains(t, fields, "trace_id")
	}
	assert.NotNil(t, cl.Zap())
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("nothing")
		cl.With(zap.Int("n", 1)).Warn("still nothing")
	})
}
