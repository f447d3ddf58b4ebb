package alerts

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/transport"
)

// Channel delivers one alert over one medium. Delivery is
// fire-and-forget from the pipeline's perspective: implementations do
// not wait for channel-specific receipts.
type Channel interface {
	Name() string
	Send(ctx context.Context, mention *models.Mention, cfg *models.ChannelConfig) error
}

// alertText is the plain-text alert body shared by webhook and SMS.
func alertText(m *models.Mention) string {
	return fmt.Sprintf("Crisis Alert\nSubject: %s\nPlatform: %s\nSeverity: %s\nLink: %s\nContent: %s",
		m.Subject, m.Source, m.Severity, m.URL, m.Text)
}

func alertHTML(m *models.Mention) string {
	return fmt.Sprintf(`<h2>Crisis Alert</h2>
<p><strong>Subject:</strong> %s</p>
<p><strong>Platform:</strong> %s</p>
<p><strong>Severity:</strong> %s</p>
<p><strong>Link:</strong> <a href="%s">View Post</a></p>
<p><strong>Content:</strong> %s</p>`,
		m.Subject, m.Source, m.Severity, m.URL, m.Text)
}

// EmailChannel delivers alerts over SMTP.
type EmailChannel struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailChannel creates the email channel.
func NewEmailChannel(host string, port int, username, password, from string) *EmailChannel {
	return &EmailChannel{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, mention *models.Mention, cfg *models.ChannelConfig) error {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", cfg.Email)
	m.SetHeader("Subject", fmt.Sprintf("Crisis Alert: %s", mention.Subject))
	m.SetBody("text/plain", alertText(mention))
	m.AddAlternative("text/html", alertHTML(mention))

	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}

// WebhookChannel posts a plain-text payload to the user's chat webhook.
type WebhookChannel struct {
	client *transport.Client
}

// NewWebhookChannel creates the chat webhook channel.
func NewWebhookChannel(client *transport.Client) *WebhookChannel {
	return &WebhookChannel{client: client}
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, mention *models.Mention, cfg *models.ChannelConfig) error {
	_, err := w.client.Execute(ctx, &transport.Request{
		Method:   "POST",
		URL:      cfg.WebhookURL,
		Platform: "webhook",
		Header:   map[string]string{"Content-Type": "application/json"},
		Body:     map[string]string{"text": alertText(mention)},
		// Webhook deliveries are not idempotent; never retried.
	})
	if err != nil {
		return fmt.Errorf("failed to post alert webhook: %w", err)
	}
	return nil
}

// SMSChannel posts to a configured SMS gateway.
type SMSChannel struct {
	client     *transport.Client
	gatewayURL string
	authToken  string
}

// NewSMSChannel creates the SMS channel.
func NewSMSChannel(client *transport.Client, gatewayURL, authToken string) *SMSChannel {
	return &SMSChannel{client: client, gatewayURL: gatewayURL, authToken: authToken}
}

func (s *SMSChannel) Name() string { return "sms" }

func (s *SMSChannel) Send(ctx context.Context, mention *models.Mention, cfg *models.ChannelConfig) error {
	_, err := s.client.Execute(ctx, &transport.Request{
		Method:   "POST",
		URL:      s.gatewayURL,
		Platform: "sms",
		Header: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + s.authToken,
		},
		Body: map[string]string{
			"to":      cfg.SMSTo,
			"message": alertText(mention),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send alert SMS: %w", err)
	}
	return nil
}
