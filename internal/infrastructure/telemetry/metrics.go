package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MetricsConfig configures the OTLP metrics pipeline.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // default 1m
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

// MeterProvider owns the SDK provider that exports allocation and database
// metrics. With metrics off, Meter hands out meters of the global provider.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider starts periodic OTLP export and installs the provider globally.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Metrics export disabled")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = time.Minute
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	res, err := newResource(Config{ServiceName: cfg.ServiceName, ServiceVersion: cfg.ServiceVersion})
	if err != nil {
		return nil, err
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("Exporting allocation metrics",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", interval),
	)
	return mp, nil
}

// Shutdown flushes pending data points, waiting at most ten seconds.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	mp.logger.Info("Metrics exporter stopped")
	return nil
}

func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled reports whether data points leave the process.
func (mp *MeterProvider) IsEnabled() bool {
	return mp.provider != nil
}

func (mp *MeterProvider) ForceFlush(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	return mp.provider.ForceFlush(ctx)
}

// Counter counts allocation outcomes or database statements.
type Counter struct {
	counter metric.Int64Counter
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Histogram records allocation amounts or statement latencies.
type Histogram struct {
	histogram metric.Float64Histogram
}

func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordAmount records a money amount in rupiah.
func (h *Histogram) RecordAmount(ctx context.Context, amount decimal.Decimal, attrs ...attribute.KeyValue) {
	h.Record(ctx, amount.InexactFloat64(), attrs...)
}

// RecordDuration records d in seconds.
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.Record(ctx, d.Seconds(), attrs...)
}

// Gauge samples a count, such as pooled connections.
type Gauge struct {
	gauge metric.Int64Gauge
}

func (g *Gauge) Record(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	g.gauge.Record(ctx, value, metric.WithAttributes(attrs...))
}

// AmountGauge samples a money total, such as the outstanding balance of a side.
type AmountGauge struct {
	gauge metric.Float64Gauge
}

func (g *AmountGauge) Record(ctx context.Context, amount decimal.Decimal, attrs ...attribute.KeyValue) {
	g.gauge.Record(ctx, amount.InexactFloat64(), metric.WithAttributes(attrs...))
}

// InstrumentSet creates instruments named prefix_name on one meter. The first
// creation error sticks: later calls return nil and Err reports it.
type InstrumentSet struct {
	meter  metric.Meter
	prefix string
	err    error
}

func NewInstrumentSet(meter metric.Meter, prefix string) *InstrumentSet {
	return &InstrumentSet{meter: meter, prefix: prefix}
}

// Err returns the first instrument creation failure
func (s *InstrumentSet) Err() error {
	return s.err
}

func (s *InstrumentSet) Counter(name, description, unit string) *Counter {
	if s.err != nil {
		return nil
	}
	c, err := s.meter.Int64Counter(s.fullName(name), metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		s.fail("counter", name, err)
		return nil
	}
	return &Counter{counter: c}
}

// Histogram creates a histogram with explicit bucket boundaries, or the SDK
// defaults when bounds is empty.
func (s *InstrumentSet) Histogram(name, description, unit string, bounds []float64) *Histogram {
	if s.err != nil {
		return nil
	}
	opts := []metric.Float64HistogramOption{metric.WithDescription(description), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}
	h, err := s.meter.Float64Histogram(s.fullName(name), opts...)
	if err != nil {
		s.fail("histogram", name, err)
		return nil
	}
	return &Histogram{histogram: h}
}

func (s *InstrumentSet) Gauge(name, description, unit string) *Gauge {
	if s.err != nil {
		return nil
	}
	g, err := s.meter.Int64Gauge(s.fullName(name), metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		s.fail("gauge", name, err)
		return nil
	}
	return &Gauge{gauge: g}
}

// AmountGauge creates a gauge in IDR.
func (s *InstrumentSet) AmountGauge(name, description string) *AmountGauge {
	if s.err != nil {
		return nil
	}
	g, err := s.meter.Float64Gauge(s.fullName(name), metric.WithDescription(description), metric.WithUnit("IDR"))
	if err != nil {
		s.fail("gauge", name, err)
		return nil
	}
	return &AmountGauge{gauge: g}
}

func (s *InstrumentSet) fullName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "_" + name
}

func (s *InstrumentSet) fail(kind, name string, err error) {
	s.err = fmt.Errorf("failed to create %s %s: %w", kind, s.fullName(name), err)
}

// Metric attribute keys.
var (
	AttrSide        = attribute.Key("side")
	AttrStatus      = attribute.Key("status")
	AttrErrorCode   = attribute.Key("error_code")
	AttrDBOperation = attribute.Key("db.operation")
	AttrDBTable     = attribute.Key("db.table")
	AttrDBState     = attribute.Key("db.state")
)

// AmountBuckets are histogram boundaries for allocation amounts in rupiah.
var AmountBuckets = []float64{1e4, 1e5, 5e5, 1e6, 5e6, 1e7, 5e7, 1e8, 1e9}

// StatementLatencyBuckets are histogram boundaries for SQL statement latency in seconds.
var StatementLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
