package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

var loggerProvider *sdklog.LoggerProvider //nolint:gochecknoglobals

func initializeLogs(ctx context.Context, cfg *Config, res *resource.Resource) error {
	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(cfg.LogsEndpoint),
		otlploghttp.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	loggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)

	global.SetLoggerProvider(loggerProvider)

	slog.Info("OpenTelemetry log export initialized", "endpoint", cfg.LogsEndpoint)

	return nil
}

// LogHandler returns a slog handler that exports records through the
// logger provider installed by Initialize, or nil if log export is off.
// Pass it to logger.WithHandler.
func LogHandler(name string) slog.Handler { //nolint:ireturn
	if loggerProvider == nil {
		return nil
	}

	return otelslog.NewHandler(name, otelslog.WithLoggerProvider(loggerProvider))
}
