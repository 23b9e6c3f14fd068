package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Trace exporter names accepted by Config.TraceExporter
const (
	TraceExporterNone    = "none"
	TraceExporterConsole = "console"
	TraceExporterOTLP    = "otlp"
)

// Config holds configuration options for OpenTelemetry
type Config struct {
	// Service information
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Tracing configuration
	TraceExporter   string
	TraceSampleRate float64
	OTLPEndpoint    string
	OTLPInsecure    bool

	// Metrics configuration
	MetricsEnabled  bool
	OTLPMetrics     bool
	MetricsInterval time.Duration

	// Registry receives the Prometheus collector. A fresh registry is created when nil.
	Registry *prometheus.Registry

	// Resource attributes
	ResourceAttributes map[string]string
}

// DefaultConfig returns a config with tracing off and pull metrics on
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName:     serviceName,
		ServiceVersion:  "1.0.0",
		Environment:     "development",
		TraceExporter:   TraceExporterNone,
		TraceSampleRate: 1.0,
		OTLPEndpoint:    "localhost:4317",
		OTLPInsecure:    true,
		MetricsEnabled:  true,
		MetricsInterval: 30 * time.Second,
	}
}

// TracingEnabled reports whether a span exporter is configured
func (c *Config) TracingEnabled() bool {
	return c.TraceExporter == TraceExporterConsole || c.TraceExporter == TraceExporterOTLP
}

// Validate checks exporter names and numeric ranges
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	switch c.TraceExporter {
	case "", TraceExporterNone, TraceExporterConsole, TraceExporterOTLP:
	default:
		return fmt.Errorf("unknown trace exporter: %s", c.TraceExporter)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("trace sample rate must be between 0 and 1, got %f", c.TraceSampleRate)
	}
	if (c.TraceExporter == TraceExporterOTLP || c.OTLPMetrics) && c.OTLPEndpoint == "" {
		return fmt.Errorf("otlp endpoint is required when otlp export is enabled")
	}
	if c.OTLPMetrics && c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics interval must be positive")
	}
	return nil
}

// GetResourceAttributes returns resource attributes including service identity
func (c *Config) GetResourceAttributes() map[string]string {
	attrs := map[string]string{
		"service.name":           c.ServiceName,
		"service.version":        c.ServiceVersion,
		"deployment.environment": c.Environment,
	}
	for k, v := range c.ResourceAttributes {
		attrs[k] = v
	}
	return attrs
}
