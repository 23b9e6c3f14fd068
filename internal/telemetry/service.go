package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eventhub/eventchat/internal/slogging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/eventhub/eventchat"

// Service manages OpenTelemetry providers and configuration
type Service struct {
	config *Config

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *prometheus.Registry

	tracer trace.Tracer
	meter  metric.Meter

	resource *resource.Resource
}

// NewService creates a new telemetry service. Disabled signals fall back to
// no-op providers so callers never need nil checks.
func NewService(ctx context.Context, config *Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	service := &Service{
		config: config,
		tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:  noop.NewMeterProvider().Meter(instrumentationName),
	}

	service.initResource()

	if config.TracingEnabled() {
		if err := service.initTracing(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if config.MetricsEnabled {
		if err := service.initMetrics(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	service.initPropagation()

	return service, nil
}

func (s *Service) initResource() {
	attrs := make([]attribute.KeyValue, 0, len(s.config.ResourceAttributes)+3)
	for key, value := range s.config.GetResourceAttributes() {
		attrs = append(attrs, attribute.String(key, value))
	}
	s.resource = resource.NewSchemaless(attrs...)
}

func (s *Service) initTracing(ctx context.Context) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch s.config.TraceExporter {
	case TraceExporterConsole:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create console trace exporter: %w", err)
		}
	case TraceExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.config.OTLPEndpoint)}
		if s.config.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
	}

	var sampler sdktrace.Sampler
	switch {
	case s.config.TraceSampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case s.config.TraceSampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(s.config.TraceSampleRate)
	}

	// Console output is for local debugging so spans are exported immediately
	var processor sdktrace.SpanProcessor
	if s.config.TraceExporter == TraceExporterConsole {
		processor = sdktrace.NewSimpleSpanProcessor(exporter)
	} else {
		processor = sdktrace.NewBatchSpanProcessor(exporter)
	}

	s.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(s.resource),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
		sdktrace.WithSpanProcessor(processor),
	)
	otel.SetTracerProvider(s.tracerProvider)

	s.tracer = s.tracerProvider.Tracer(
		instrumentationName,
		trace.WithInstrumentationVersion(s.config.ServiceVersion),
	)

	slogging.Get().Info("Tracing initialized with %s exporter, sample rate: %.2f",
		s.config.TraceExporter, s.config.TraceSampleRate)
	return nil
}

func (s *Service) initMetrics(ctx context.Context) error {
	s.registry = s.config.Registry
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	prometheusExporter, err := otelprom.New(otelprom.WithRegisterer(s.registry))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(s.resource),
		sdkmetric.WithReader(prometheusExporter),
	}

	if s.config.OTLPMetrics {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(s.config.OTLPEndpoint)}
		if s.config.OTLPInsecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		otlpExporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(otlpExporter, sdkmetric.WithInterval(s.config.MetricsInterval)),
		))
	}

	s.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(s.meterProvider)

	s.meter = s.meterProvider.Meter(
		instrumentationName,
		metric.WithInstrumentationVersion(s.config.ServiceVersion),
	)

	slogging.Get().Info("Metrics initialized (prometheus pull, otlp push: %t)", s.config.OTLPMetrics)
	return nil
}

func (s *Service) initPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Tracer returns the service tracer; a no-op tracer when tracing is off
func (s *Service) Tracer() trace.Tracer {
	return s.tracer
}

// Meter returns the service meter; a no-op meter when metrics are off
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// MetricsHandler serves the Prometheus registry. It returns 404 when metrics are disabled.
func (s *Service) MetricsHandler() http.Handler {
	if s.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops all providers
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error

	if s.tracerProvider != nil {
		if err := s.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracer provider: %w", err))
		}
	}

	if s.meterProvider != nil {
		if err := s.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Health reports which providers are active
func (s *Service) Health() HealthStatus {
	return HealthStatus{
		Healthy: true,
		Details: map[string]any{
			"tracing_enabled": s.tracerProvider != nil,
			"metrics_enabled": s.meterProvider != nil,
			"service_name":    s.config.ServiceName,
			"service_version": s.config.ServiceVersion,
			"checked_at":      time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// HealthStatus represents the health status of the telemetry service
type HealthStatus struct {
	Healthy bool           `json:"healthy"`
	Details map[string]any `json:"details"`
}
