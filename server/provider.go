package server

import (
	"context"

	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/handlers/auth"
	"github.com/tech-arch1tect/loginguard/services/metrics"
	"go.uber.org/fx"
)

func RegisterRoutes(srv *Server, handler *auth.Handler, metricsService *metrics.Service, cfg *config.Config) {
	handler.RegisterRoutes(srv.Echo())

	if cfg.Metrics.Enabled {
		srv.Echo().GET(cfg.Metrics.Path, metricsService.Handler())
	}
}

var Options = fx.Options(
	fx.Provide(New),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(func(lc fx.Lifecycle, srv *Server) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go srv.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)
