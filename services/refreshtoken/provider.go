package refreshtoken

import (
	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/anomaly"
	"github.com/tech-arch1tect/loginguard/services/jwt"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideService(db *gorm.DB, cfg *config.Config, jwtService *jwt.Service, engine *anomaly.Engine, logger *logging.Service) *Service {
	service := NewService(db, cfg, jwtService, engine, logger)

	if cfg.RefreshToken.CleanupInterval > 0 {
		service.StartCleanupWorker()
	}

	return service
}

var Options = fx.Options(
	fx.Provide(ProvideService),
)
