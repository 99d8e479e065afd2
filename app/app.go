package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/database"
	authhandler "github.com/tech-arch1tect/loginguard/handlers/auth"
	"github.com/tech-arch1tect/loginguard/internal/credentials"
	"github.com/tech-arch1tect/loginguard/middleware/ratelimit"
	"github.com/tech-arch1tect/loginguard/server"
	"github.com/tech-arch1tect/loginguard/services/alerts"
	"github.com/tech-arch1tect/loginguard/services/anomaly"
	"github.com/tech-arch1tect/loginguard/services/geoip"
	"github.com/tech-arch1tect/loginguard/services/jwt"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"github.com/tech-arch1tect/loginguard/services/metrics"
	"github.com/tech-arch1tect/loginguard/services/refreshtoken"
	"github.com/tech-arch1tect/loginguard/session"
	"go.uber.org/fx"
)

type App struct {
	fx     *fx.App
	logger *logging.Service
}

// New composes the full pipeline. Passing a nil config loads it from the
// environment.
func New(customConfig *config.Config) *App {
	app := &App{}

	app.fx = fx.New(
		config.NewProvider(customConfig),
		logging.Module,
		fx.Provide(func() *database.ModelsOption {
			return database.WithModels(
				&credentials.AdminUser{},
				&session.Session{},
				&refreshtoken.RefreshToken{},
				&anomaly.Record{},
			)
		}),
		database.Module,
		jwt.Options,
		ratelimit.Options,
		session.Options,
		geoip.Options,
		alerts.Options,
		metrics.Options,
		anomaly.Options,
		refreshtoken.Options,
		credentials.Options,
		authhandler.Options,
		server.Options,
		fx.Invoke(func(logger *logging.Service) {
			app.logger = logger
		}),
	)

	return app
}

func (a *App) Start() error {
	return a.fx.Start(context.Background())
}

// Run starts the application and blocks until an interrupt or terminate
// signal, then shuts down gracefully.
func (a *App) Run() {
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	if a.logger != nil {
		a.logger.Info("received shutdown signal, stopping gracefully")
	} else {
		log.Printf("Received signal %v, shutting down gracefully...", sig)
	}

	a.Stop()
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		if a.logger != nil {
			a.logger.Error("failed to stop application gracefully")
		} else {
			log.Printf("Failed to stop application gracefully: %v", err)
		}
	}

	_ = a.logger.Sync()
}
