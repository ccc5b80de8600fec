package observe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config holds observability configuration.
type Config struct {
	ServiceName string
	Version     string

	// LogLevel is debug|info|warn|error. Empty means info.
	LogLevel string

	// MetricsEnabled exposes OTel metrics through a Prometheus registry.
	MetricsEnabled bool

	// TracingEnabled writes spans to stdout; intended for debugging only.
	TracingEnabled bool
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return errors.New("observe: service name is required")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("observe: unknown log level %q", c.LogLevel)
	}
	return nil
}

// Observer bundles the telemetry primitives for the service.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Shutdown is idempotent and returns the first error encountered.
type Observer struct {
	logger  Logger
	meter   metric.Meter
	tracer  trace.Tracer
	metrics *Metrics

	registry       *prometheus.Registry
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// NewObserver sets up logging, metrics, and optional tracing.
func NewObserver(ctx context.Context, cfg Config) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	obs := &Observer{
		logger: NewLogger(cfg.LogLevel),
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: create resource: %w", err)
	}

	if cfg.MetricsEnabled {
		obs.registry = prometheus.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(obs.registry))
		if err != nil {
			return nil, fmt.Errorf("observe: create prometheus exporter: %w", err)
		}
		obs.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(obs.meterProvider)
		obs.meter = obs.meterProvider.Meter(cfg.ServiceName)
	} else {
		obs.meter = metricnoop.NewMeterProvider().Meter("noop")
	}

	if cfg.TracingEnabled {
		exporter, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("observe: create trace exporter: %w", err)
		}
		obs.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(obs.tracerProvider)
		obs.tracer = obs.tracerProvider.Tracer(cfg.ServiceName)
	} else {
		obs.tracer = tracenoop.NewTracerProvider().Tracer("noop")
	}

	metrics, err := NewMetrics(obs.meter)
	if err != nil {
		return nil, err
	}
	obs.metrics = metrics

	return obs, nil
}

// Logger returns the configured logger.
func (o *Observer) Logger() Logger { return o.logger }

// Meter returns the configured meter.
func (o *Observer) Meter() metric.Meter { return o.meter }

// Tracer returns the configured tracer.
func (o *Observer) Tracer() trace.Tracer { return o.tracer }

// Metrics returns the service instrument set.
func (o *Observer) Metrics() *Metrics { return o.metrics }

// MetricsHandler returns the Prometheus scrape handler, or nil when metrics
// are disabled.
func (o *Observer) MetricsHandler() http.Handler {
	if o.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops all telemetry providers.
func (o *Observer) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		o.tracerProvider = nil
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
		o.meterProvider = nil
	}
	return errors.Join(errs...)
}

// Nop returns an Observer with everything disabled, for tests.
func Nop() *Observer {
	metrics, _ := NewMetrics(metricnoop.NewMeterProvider().Meter("noop"))
	return &Observer{
		logger:  NopLogger(),
		meter:   metricnoop.NewMeterProvider().Meter("noop"),
		tracer:  tracenoop.NewTracerProvider().Tracer("noop"),
		metrics: metrics,
	}
}
