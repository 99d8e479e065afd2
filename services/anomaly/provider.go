package anomaly

import (
	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/alerts"
	"github.com/tech-arch1tect/loginguard/services/geoip"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"github.com/tech-arch1tect/loginguard/services/metrics"
	"github.com/tech-arch1tect/loginguard/session"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideFailedLoginCounter(cfg *config.Config) *FailedLoginCounter {
	counter := NewFailedLoginCounter(cfg.Anomaly.FailedLoginWindow)

	if cfg.Anomaly.CounterSweepInterval > 0 {
		counter.StartSweepWorker(cfg.Anomaly.CounterSweepInterval)
	}

	return counter
}

func ProvideEngine(db *gorm.DB, counter *FailedLoginCounter, registry *session.Registry, resolver *geoip.Resolver, dispatcher *alerts.Dispatcher, metricsService *metrics.Service, cfg *config.Config, logger *logging.Service) *Engine {
	engine := NewEngine(db, counter, registry, resolver, dispatcher, cfg, logger)
	engine.SetMetricsRecorder(metricsService)
	return engine
}

var Options = fx.Options(
	fx.Provide(ProvideFailedLoginCounter),
	fx.Provide(ProvideEngine),
)
