// Package telemetry sets up OpenTelemetry tracing and log export for hosts of the state
// machine runtime. The fsm package's TracingObserver uses whatever global
// tracer provider Initialize installs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/amp-labs/amp-fsm/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	defaultServiceVersion = "1.0.0"
	defaultTimeout        = 5 * time.Second

	clusterCollectorEndpoint = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"
)

var tracerProvider *sdktrace.TracerProvider //nolint:gochecknoglobals

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string        `env:"OTEL_SERVICE_NAME"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION"               envDefault:"1.0.0"`
	Environment    string        `env:"-"`
	Endpoint       string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	Enabled        bool          `env:"OTEL_ENABLED"                       envDefault:"false"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TRACES_TIMEOUT"  envDefault:"5s"`

	// LogsEndpoint defaults to Endpoint.
	LogsEndpoint string `env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	LogsEnabled  bool   `env:"OTEL_LOGS_ENABLED"                envDefault:"false"`
}

// LoadConfigFromEnv loads the configuration from the OTEL_* environment
// variables. serviceName is used when OTEL_SERVICE_NAME is unset. Inside
// Kubernetes the endpoint defaults to the in-cluster collector.
func LoadConfigFromEnv(serviceName, runningEnv string) (*Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	return finalize(cfg, serviceName, runningEnv), nil
}

func finalize(cfg Config, serviceName, runningEnv string) *Config {
	if cfg.ServiceName == "" {
		cfg.ServiceName = serviceName
	}

	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = defaultServiceVersion
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.Endpoint == "" && os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		cfg.Endpoint = clusterCollectorEndpoint
	}

	if cfg.LogsEndpoint == "" {
		cfg.LogsEndpoint = cfg.Endpoint
	}

	cfg.Environment = runningEnv

	return &cfg
}

// Initialize installs a global tracer provider exporting over OTLP/HTTP
// and, when log export is enabled, a logger provider whose records are
// available through LogHandler. Each signal is skipped when it is disabled
// or has no endpoint.
func Initialize(ctx context.Context, cfg *Config) error {
	tracing := cfg.Enabled && cfg.Endpoint != ""
	logs := cfg.LogsEnabled && cfg.LogsEndpoint != ""

	if !cfg.Enabled {
		slog.Info("OpenTelemetry tracing is disabled")
	} else if cfg.Endpoint == "" {
		slog.Warn("OpenTelemetry endpoint not configured, tracing will be disabled")
	}

	if !tracing && !logs {
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	if tracing {
		if err := initializeTracing(ctx, cfg, res); err != nil {
			return err
		}
	}

	if logs {
		if err := initializeLogs(ctx, cfg, res); err != nil {
			return err
		}
	}

	return nil
}

func initializeTracing(ctx context.Context, cfg *Config, res *resource.Resource) error {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	slog.Info("OpenTelemetry tracing initialized",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"environment", cfg.Environment,
		"endpoint", cfg.Endpoint,
	)

	return nil
}

// Shutdown flushes and stops the providers installed by Initialize.
func Shutdown(ctx context.Context) error {
	var errs []error

	if tracerProvider != nil {
		slog.Info("Shutting down OpenTelemetry tracer provider")

		errs = append(errs, tracerProvider.Shutdown(ctx))
		tracerProvider = nil
	}

	if loggerProvider != nil {
		errs = append(errs, loggerProvider.Shutdown(ctx))
		loggerProvider = nil
	}

	return errors.Join(errs...)
}
