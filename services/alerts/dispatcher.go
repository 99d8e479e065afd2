package alerts

import (
	"context"
	"time"

	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/zap"
)

// Dispatcher fans an event out to every configured notifier without awaiting
// completion. The caller's login response must never wait on delivery.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    *logging.Service
}

func NewDispatcher(notifiers []Notifier, logger *logging.Service) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

// Dispatch returns immediately; delivery runs in the background and failures
// are logged only.
func (d *Dispatcher) Dispatch(event Event) {
	if len(d.notifiers) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		for _, notifier := range d.notifiers {
			if err := notifier.Notify(ctx, event); err != nil {
				d.logger.Error("alert delivery failed",
					zap.String("notifier", notifier.Name()),
					zap.String("event_id", event.ID),
					zap.String("title", event.Title),
					zap.Error(err))
				continue
			}

			d.logger.Info("alert delivered",
				zap.String("notifier", notifier.Name()),
				zap.String("event_id", event.ID),
				zap.String("severity", event.Severity))
		}
	}()
}
