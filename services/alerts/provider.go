package alerts

import (
	"github.com/tech-arch1tect/loginguard/config"
	"github.com/tech-arch1tect/loginguard/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvideDispatcher(cfg *config.Config, logger *logging.Service) *Dispatcher {
	var notifiers []Notifier

	if cfg.Alerts.WebhookURL != "" {
		notifiers = append(notifiers, NewWebhookNotifier(&cfg.Alerts))
	}

	if cfg.Alerts.MailEnabled {
		mailNotifier, err := NewMailNotifier(&cfg.Alerts)
		if err != nil {
			logger.Error("alert mail notifier disabled", zap.Error(err))
		} else {
			notifiers = append(notifiers, mailNotifier)
		}
	}

	if len(notifiers) == 0 {
		logger.Warn("no alert notifiers configured, security alerts will only be logged")
	}

	return NewDispatcher(notifiers, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideDispatcher),
)
