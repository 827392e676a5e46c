package notify

import (
	"bytes"
	"context"
	"fmt"

	"shopfront/internal/config"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Attachment is a document sent along with a notification.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mailer sends a single message to an external address. One attempt per
// call, no automatic retry: notification delivery is best-effort.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string, attachment *Attachment) error
}

// NewMailer builds the SMTP mailer, or a disabled one when no SMTP host is
// configured. The disabled mailer logs and reports success so callers are
// never blocked by missing mail configuration.
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) (Mailer, error) {
	if cfg.Host == "" {
		logger.Info("SMTP not configured, notifications disabled")
		return &disabledMailer{logger: logger}, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return &smtpMailer{
		client: client,
		from:   cfg.From,
		logger: logger,
	}, nil
}

type smtpMailer struct {
	client *mail.Client
	from   string
	logger *zap.Logger
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, body string, attachment *Attachment) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if attachment != nil {
		if err := msg.AttachReader(attachment.Filename, bytes.NewReader(attachment.Data),
			mail.WithFileContentType(mail.ContentType(attachment.ContentType))); err != nil {
			return fmt.Errorf("failed to attach %s: %w", attachment.Filename, err)
		}
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.logger.Debug("Mail sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)

	return nil
}

// disabledMailer is the no-op used when transport credentials are absent.
type disabledMailer struct {
	logger *zap.Logger
}

func (m *disabledMailer) Send(_ context.Context, to, subject, _ string, _ *Attachment) error {
	m.logger.Info("Mail suppressed (SMTP disabled)",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
