package metrics

import (
	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideService(cfg *config.Config, logger *logging.Service) *Service {
	if !cfg.Metrics.Enabled {
		logger.Info("metrics collection disabled")
		return nil
	}

	logger.Info("metrics collection enabled", zap.String("path", cfg.Metrics.Path))
	return NewService()
}

var Options = fx.Options(
	fx.Provide(ProvideService),
)
