package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/renova-api/internal/config"
	"github.com/jwalitptl/renova-api/pkg/logger"
)

type Service interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPService delivers plain-text mail through an SMTP relay
type SMTPService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg config.MailConfig) *SMTPService {
	return &SMTPService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPService) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// LogService only logs outgoing mail. Used when mail is disabled.
type LogService struct {
	logger *logger.Logger
}

func NewLogService(log *logger.Logger) *LogService {
	return &LogService{logger: log}
}

func (s *LogService) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info("Email suppressed", "to", to, "subject", subject)
	return nil
}

// New picks the SMTP service when mail is enabled.
func New(cfg config.MailConfig, log *logger.Logger) Service {
	if !cfg.Enabled {
		return NewLogService(log)
	}
	return NewSMTPService(cfg)
}
