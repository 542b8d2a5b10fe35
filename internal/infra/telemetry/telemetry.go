package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/arklim/api-starter/internal/infra/config"
)

// Provider bundles the process-level telemetry handles: the OTLP tracer
// provider when tracing is enabled, and the static build info metric.
type Provider struct {
	tracer    *TracerProvider
	buildInfo prometheus.Gauge
}

// Attach configures telemetry for the process and returns a provider
// handle. The build info metric is always registered; tracing only
// starts when enabled in configuration.
func Attach(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	buildInfo := promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "starter",
		Name:      "build_info",
		Help:      "Static series carrying the service identity labels",
		ConstLabels: prometheus.Labels{
			"service":     cfg.App.Name,
			"environment": cfg.App.Env,
		},
	})
	buildInfo.Set(1)

	provider := &Provider{buildInfo: buildInfo}

	if cfg.Telemetry.Enabled {
		tracer, err := NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracer provider: %w", err)
		}
		provider.tracer = tracer
	}

	return provider, nil
}

// Tracer exposes the tracer provider, or nil when tracing is disabled.
func (p *Provider) Tracer() *TracerProvider {
	if p == nil {
		return nil
	}
	return p.tracer
}

// Shutdown flushes and stops the tracer provider when one is attached.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tracer == nil {
		return nil
	}
	return p.tracer.Shutdown(ctx)
}
