package ratelimit

import (
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"github.com/tech-arch1tect/loginguard/services/metrics"
	"go.uber.org/fx"
)

func ProvideStore(cfg *config.Config) Store {
	switch cfg.RateLimit.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
		})
		return NewRedisStore(client)
	case "memory":
		fallthrough
	default:
		store := NewMemoryStore()
		if cfg.RateLimit.SweepInterval > 0 {
			store.StartSweepWorker(cfg.RateLimit.SweepInterval)
		}
		return store
	}
}

func ProvideLimiter(store Store, cfg *config.Config, metricsService *metrics.Service, logger *logging.Service) *Limiter {
	limiter := NewLimiter(store, &cfg.RateLimit, logger)
	limiter.SetMetricsRecorder(metricsService)
	return limiter
}

var Options = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(ProvideLimiter),
)
