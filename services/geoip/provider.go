package geoip

import (
	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"github.com/tech-arch1tect/loginguard/services/metrics"
	"go.uber.org/fx"
)

func ProvideProvider(cfg *config.Config) Provider {
	return NewHTTPProvider(&cfg.GeoIP)
}

func ProvideResolver(provider Provider, cfg *config.Config, metricsService *metrics.Service, logger *logging.Service) *Resolver {
	resolver := NewResolver(provider, &cfg.GeoIP, logger)
	resolver.SetMetricsRecorder(metricsService)

	if cfg.GeoIP.SweepInterval > 0 {
		resolver.StartSweepWorker(cfg.GeoIP.SweepInterval)
	}

	return resolver
}

var Options = fx.Options(
	fx.Provide(ProvideProvider),
	fx.Provide(ProvideResolver),
)
