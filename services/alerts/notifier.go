package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tech-arch1tect/loginguard/config"
	"github.com/wneessen/go-mail"
)

// Notifier delivers one alert event to an external collaborator.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}

// WebhookNotifier POSTs the event as JSON to a configured endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(cfg *config.AlertsConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url: cfg.WebhookURL,
		client: &http.Client{
			Timeout: cfg.WebhookTimeout,
		},
	}
}

func (n *WebhookNotifier) Name() string {
	return "webhook"
}

func (n *WebhookNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode alert event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// MailNotifier sends the event to the security distribution address.
type MailNotifier struct {
	client *mail.Client
	from   string
	to     string
}

func NewMailNotifier(cfg *config.AlertsConfig) (*MailNotifier, error) {
	if cfg.MailFrom == "" || cfg.MailTo == "" {
		return nil, fmt.Errorf("alert mail requires both from and to addresses")
	}

	clientOpts := []mail.Option{
		mail.WithPort(cfg.MailPort),
	}

	switch cfg.MailEncryption {
	case "tls", "starttls":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case "ssl":
		clientOpts = append(clientOpts, mail.WithSSL())
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.MailUsername != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.MailUsername),
			mail.WithPassword(cfg.MailPassword))
	}

	client, err := mail.NewClient(cfg.MailHost, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert mail client: %w", err)
	}

	return &MailNotifier{
		client: client,
		from:   cfg.MailFrom,
		to:     cfg.MailTo,
	}, nil
}

func (n *MailNotifier) Name() string {
	return "mail"
}

func (n *MailNotifier) Notify(ctx context.Context, event Event) error {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return fmt.Errorf("invalid alert from address: %w", err)
	}
	if err := msg.To(n.to); err != nil {
		return fmt.Errorf("invalid alert to address: %w", err)
	}

	msg.Subject(fmt.Sprintf("[%s] %s", event.Severity, event.Title))

	body := fmt.Sprintf("%s\n\nUser: %d (%s)\nAddress: %s\nTime: %s\n",
		event.Description, event.UserID, event.Email, event.IPAddress,
		event.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if len(event.Details) > 0 {
		if detail, err := json.MarshalIndent(event.Details, "", "  "); err == nil {
			body += "\nDetails:\n" + string(detail) + "\n"
		}
	}
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("alert mail delivery failed: %w", err)
	}

	return nil
}
