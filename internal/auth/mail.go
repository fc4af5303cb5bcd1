package auth

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Mailer delivers login codes to users.
type Mailer interface {
	SendCode(ctx context.Context, email, code string, expiryMinutes int) error
}

// SMTPConfig holds the mail relay parameters.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPMailer sends login codes through an SMTP relay.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer builds an SMTP-backed Mailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.User == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host, user, and from are required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// SendCode mails the login code.
func (m *SMTPMailer) SendCode(ctx context.Context, email, code string, expiryMinutes int) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject("Your crawler login code")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Your authentication code is: %s\n\n"+
			"This code will expire in %d minutes.\n\n"+
			"If you didn't request this code, please ignore this email.\n",
		code, expiryMinutes,
	))

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.User),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogMailer logs codes instead of mailing them. Used when SMTP is not
// configured, mirroring a development setup.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a log-only Mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// SendCode logs the login code.
func (m *LogMailer) SendCode(_ context.Context, email, code string, expiryMinutes int) error {
	m.logger.Warn("email not configured, logging auth code",
		zap.String("email", email),
		zap.String("code", code),
		zap.Int("expiry_minutes", expiryMinutes),
	)
	return nil
}
