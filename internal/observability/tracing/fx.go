package tracing

import (
	"github.com/subvisor/subvisor/internal/config"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability.tracing",
	fx.Provide(ProvideConfig),
	fx.Provide(NewProvider),
	fx.Invoke(ensureProvider),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.AppName,
		ServiceVersion:   cfg.AppVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func ensureProvider(_ trace.TracerProvider) {}
