package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/luxecommerce/storefront/core"
)

const instrumentationName = "github.com/luxecommerce/storefront"

// Provider is a core.Telemetry that owns exporters and must be shut down.
type Provider interface {
	core.Telemetry
	RecordOperation(ctx context.Context, op string, duration time.Duration, err error)
	Shutdown(ctx context.Context) error
}

// Options configure the OpenTelemetry pipeline.
type Options struct {
	ServiceName string
	Version     string
	Exporter    string // "stdout" or "otlp"
	Endpoint    string
	// MetricsEndpoint is the OTLP/HTTP metrics host:port. Empty uses the
	// exporter's environment defaults.
	MetricsEndpoint string
	Insecure    bool
	SampleRatio float64
	// Writer receives stdout exporter output; defaults to os.Stdout
	Writer io.Writer
	// SpanProcessor replaces the exporter pipeline; tests pass a recorder
	SpanProcessor sdktrace.SpanProcessor
	// MetricReader collects the operation metrics. Nil exports over
	// OTLP/HTTP for the otlp exporter and drops metrics otherwise.
	MetricReader sdkmetric.Reader
}

// OTELImpl wires tracing and metrics onto OpenTelemetry.
type OTELImpl struct {
	TraceProvider *sdktrace.TracerProvider
	MeterProvider *sdkmetric.MeterProvider
	Tracer        trace.Tracer
	Meter         metric.Meter
	serviceName   string

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	opCounter  metric.Int64Counter
	opDuration metric.Float64Histogram
}

var _ Provider = (*OTELImpl)(nil)

// NewFromConfig builds a provider from storefront configuration. A disabled
// configuration yields a no-op provider.
func NewFromConfig(ctx context.Context, cfg core.TelemetryConfig, version string) (Provider, error) {
	if !cfg.Enabled || os.Getenv("OTEL_SDK_DISABLED") == "true" {
		return NoOp(), nil
	}
	return New(ctx, Options{
		ServiceName:     cfg.ServiceName,
		Version:         version,
		Exporter:        cfg.Exporter,
		Endpoint:        cfg.Endpoint,
		MetricsEndpoint: cfg.MetricsEndpoint,
		Insecure:        cfg.Insecure,
		SampleRatio:     cfg.SampleRatio,
	})
}

// New creates the tracer provider, installs it globally and prepares the
// operation instruments.
func New(ctx context.Context, opts Options) (*OTELImpl, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "storefront"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.Version),
		attribute.String("deployment.environment", getEnvironment()),
	)

	processor := opts.SpanProcessor
	if processor == nil {
		exporter, err := newExporter(ctx, opts)
		if err != nil {
			return nil, err
		}
		processor = sdktrace.NewBatchSpanProcessor(exporter)
	}

	sampler := sdktrace.AlwaysSample()
	if opts.SampleRatio > 0 && opts.SampleRatio < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	impl := &OTELImpl{
		TraceProvider: tp,
		Tracer:        tp.Tracer(instrumentationName),
		Meter:         otel.Meter(instrumentationName),
		serviceName:   opts.ServiceName,
		counters:      make(map[string]metric.Float64Counter),
	}

	reader, err := newMetricReader(ctx, opts)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	if reader != nil {
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(reader),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		impl.MeterProvider = mp
		impl.Meter = mp.Meter(instrumentationName)
	}

	impl.opCounter, err = impl.Meter.Int64Counter(
		"storefront_operations_total",
		metric.WithDescription("Store operations by name and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operation counter: %w", err)
	}
	impl.opDuration, err = impl.Meter.Float64Histogram(
		"storefront_operation_duration_seconds",
		metric.WithDescription("Store operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operation histogram: %w", err)
	}

	return impl, nil
}

func newExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	switch opts.Exporter {
	case "", "stdout":
		w := opts.Writer
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exp, nil
	case "otlp":
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("otlp exporter needs an endpoint: %w", core.ErrMissingConfiguration)
		}
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
		if opts.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown exporter %q: %w", opts.Exporter, core.ErrInvalidConfiguration)
	}
}

func newMetricReader(ctx context.Context, opts Options) (sdkmetric.Reader, error) {
	if opts.MetricReader != nil {
		return opts.MetricReader, nil
	}
	if opts.Exporter != "otlp" {
		return nil, nil
	}
	var httpOpts []otlpmetrichttp.Option
	if opts.MetricsEndpoint != "" {
		httpOpts = append(httpOpts, otlpmetrichttp.WithEndpoint(opts.MetricsEndpoint))
	}
	if opts.Insecure {
		httpOpts = append(httpOpts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}

// getEnvironment gets the deployment environment
func getEnvironment() string {
	if env := os.Getenv("DEPLOYMENT_ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}

// StartSpan starts a span named name as a child of any span in ctx.
func (a *OTELImpl) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := a.Tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric adds value to the counter called name.
func (a *OTELImpl) RecordMetric(name string, value float64, labels map[string]string) {
	a.mu.Lock()
	counter, ok := a.counters[name]
	if !ok {
		var err error
		counter, err = a.Meter.Float64Counter(name)
		if err != nil {
			a.mu.Unlock()
			return
		}
		a.counters[name] = counter
	}
	a.mu.Unlock()

	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrs...))
}

// RecordOperation records the outcome and latency of one store operation.
func (a *OTELImpl) RecordOperation(ctx context.Context, op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	a.opCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", status),
	))
	a.opDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("operation", op),
	))
}

// Shutdown flushes and stops the tracer and meter providers.
func (a *OTELImpl) Shutdown(ctx context.Context) error {
	var errs []error
	if a.TraceProvider != nil {
		errs = append(errs, a.TraceProvider.Shutdown(ctx))
	}
	if a.MeterProvider != nil {
		errs = append(errs, a.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprint(v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

type noopProvider struct {
	core.NoOpTelemetry
}

// NoOp returns a provider that records nothing.
func NoOp() Provider {
	return &noopProvider{}
}

func (n *noopProvider) RecordOperation(ctx context.Context, op string, duration time.Duration, err error) {
}

func (n *noopProvider) Shutdown(ctx context.Context) error {
	return nil
}

// Track starts a span for op and returns the span's context and a func
// that ends it, recording err and the elapsed time. Use with a named error
// return so nested operations become children of op:
//
//	ctx, done := telemetry.Track(ctx, tel, "orders.Append")
//	defer done(&err)
func Track(ctx context.Context, tel core.Telemetry, op string) (context.Context, func(*error)) {
	if tel == nil {
		return ctx, func(*error) {}
	}
	start := time.Now()
	ctx, span := tel.StartSpan(ctx, op)
	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		span.RecordError(err)
		span.End()
		if p, ok := tel.(Provider); ok {
			p.RecordOperation(ctx, op, time.Since(start), err)
		}
	}
}
