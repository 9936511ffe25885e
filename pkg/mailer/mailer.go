package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/event-nexus-api/pkg/config"
)

// Attachment is an optional document delivered with a message.
type Attachment struct {
	Filename string
	Content  []byte
}

// Mailer dispatches transactional email through the Resend API. When
// disabled it logs the message and reports success, which keeps local
// development free of external calls.
type Mailer struct {
	cfg    config.MailConfig
	client *resend.Client
	logger *zap.Logger
}

// New constructs a Mailer. The sender address is validated up front when
// dispatch is enabled.
func New(cfg config.MailConfig, logger *zap.Logger) (*Mailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailer{cfg: cfg, logger: logger}
	if cfg.Enabled {
		if err := validateAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender address: %w", err)
		}
		m.client = resend.NewClient(cfg.APIKey)
	}
	return m, nil
}

// Send delivers a message to a single recipient. Failures are returned to the
// caller but never panic; callers treat dispatch as best-effort.
func (m *Mailer) Send(ctx context.Context, to, subject, body string, attachment *Attachment) error {
	if err := validateAddress(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	if !m.cfg.Enabled {
		m.logger.Info("mail dispatch disabled, skipping",
			zap.String("to", to),
			zap.String("subject", subject),
		)
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    m.cfg.From,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}
	if attachment != nil {
		params.Attachments = []*resend.Attachment{{
			Filename: attachment.Filename,
			Content:  attachment.Content,
		}}
	}

	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m.logger.Info("email dispatched",
		zap.String("email_id", sent.Id),
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

func validateAddress(address string) error {
	addr, err := mail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("address contains newline characters")
	}
	return nil
}
