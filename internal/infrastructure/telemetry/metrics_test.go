package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/arap/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// newTestMeter returns a meter backed by a manual reader so tests can collect what was recorded.
func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Minute,
		ServiceName:       "arap-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("arap"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestInstrumentSet_PrefixesNames(t *testing.T) {
	reader, mp := newTestMeter(t)
	ctx := context.Background()

	set := telemetry.NewInstrumentSet(mp.Meter("test"), "arap_test")
	counter := set.Counter("allocations_total", "test counter", "{allocations}")
	gauge := set.Gauge("connections", "int gauge", "{connection}")
	outstanding := set.AmountGauge("outstanding", "amount gauge")
	require.NoError(t, set.Err())

	counter.Inc(ctx, telemetry.AttrSide.String("receivable"))
	counter.Inc(ctx, telemetry.AttrSide.String("receivable"))
	gauge.Record(ctx, 3)
	gauge.Record(ctx, 7)
	outstanding.Record(ctx, decimal.RequireFromString("1500.50"))

	metrics := collect(t, reader)
	sum, ok := metrics["arap_test_allocations_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	ig, ok := metrics["arap_test_connections"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(7), ig.DataPoints[0].Value)

	fg, ok := metrics["arap_test_outstanding"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.Equal(t, 1500.5, fg.DataPoints[0].Value)
	assert.Equal(t, "IDR", metrics["arap_test_outstanding"].Unit)
}

func TestInstrumentSet_Histogram(t *testing.T) {
	reader, mp := newTestMeter(t)
	ctx := context.Background()

	set := telemetry.NewInstrumentSet(mp.Meter("test"), "arap_test")
	latency := set.Histogram("latency_seconds", "test histogram", "s", telemetry.StatementLatencyBuckets)
	require.NoError(t, set.Err())

	latency.RecordDuration(ctx, 20*time.Millisecond)
	latency.RecordAmount(ctx, decimal.NewFromInt(2), attribute.String("k", "v"))

	hist, ok := collect(t, reader)["arap_test_latency_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		assert.Equal(t, telemetry.StatementLatencyBuckets, dp.Bounds)
	}
	assert.Equal(t, uint64(2), count)
}

func TestInstrumentSet_FirstErrorSticks(t *testing.T) {
	_, mp := newTestMeter(t)

	set := telemetry.NewInstrumentSet(mp.Meter("test"), "")
	assert.Nil(t, set.Counter("9-not-a-name", "invalid", "{x}"))
	require.Error(t, set.Err())
	assert.Contains(t, set.Err().Error(), "9-not-a-name")

	assert.Nil(t, set.Gauge("valid", "skipped after a failure", "{x}"))
	assert.Nil(t, set.AmountGauge("also_valid", "skipped after a failure"))
}

func TestAmountBuckets_Ascending(t *testing.T) {
	for i := 1; i < len(telemetry.AmountBuckets); i++ {
		assert.Greater(t, telemetry.AmountBuckets[i], telemetry.AmountBuckets[i-1])
	}
}
