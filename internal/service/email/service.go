package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"agenda-eventos/internal/config"
)

// Service sends e-mail copies of notifications. Delivery is best effort;
// without an API key every send is a logged no-op.
type Service interface {
	SendNotificationCopy(ctx context.Context, toEmail, recipientName, title, message string) error
}

var notificationTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif">
    <p>{{.Name}},</p>
    <h2>{{.Title}}</h2>
    <p>{{.Message}}</p>
    <p><a href="{{.Link}}">{{.Link}}</a></p>
  </body>
</html>`))

type service struct {
	client *resend.Client
	config *config.Config
	logger *slog.Logger
}

func NewService(cfg *config.Config, logger *slog.Logger) Service {
	var client *resend.Client
	if cfg.ResendAPIKey != "" {
		client = resend.NewClient(cfg.ResendAPIKey)
	}
	return &service{
		client: client,
		config: cfg,
		logger: logger,
	}
}

func (s *service) SendNotificationCopy(ctx context.Context, toEmail, recipientName, title, message string) error {
	if s.client == nil || toEmail == "" {
		s.logger.DebugContext(ctx, "email delivery skipped",
			slog.String("to", toEmail), slog.String("title", title))
		return nil
	}

	data := struct {
		Name    string
		Title   string
		Message string
		Link    string
	}{
		Name:    recipientName,
		Title:   title,
		Message: message,
		Link:    fmt.Sprintf("https://%s/notifications", s.config.Domain),
	}

	var body bytes.Buffer
	if err := notificationTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute email template: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Agenda <%s>", s.config.FromEmail),
		To:      []string{toEmail},
		Html:    body.String(),
		Subject: title,
	}

	if _, err := s.client.Emails.Send(params); err != nil {
		s.logger.WarnContext(ctx, "email delivery failed", slog.String("to", toEmail), slog.Any("error", err))
		return err
	}
	return nil
}
