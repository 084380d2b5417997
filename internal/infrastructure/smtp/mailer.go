package smtp

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"

	"fluxo/internal/domain/notification"
)

// Config holds SMTP server settings. An empty Host leaves the mailer
// unconfigured; messages are then logged instead of sent, which keeps dev
// and test environments working without a mail server.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

// Resolver maps a user ID to a deliverable email address. Identity lives
// outside this core, so the daemon injects whatever directory it has.
type Resolver func(ctx context.Context, userID string) (string, error)

// Mailer delivers rendered messages over SMTP. It implements
// notification.Messenger.
type Mailer struct {
	cfg     Config
	resolve Resolver
	log     zerolog.Logger
}

// NewMailer creates a mailer with the given settings and address resolver.
func NewMailer(cfg Config, resolve Resolver, log zerolog.Logger) *Mailer {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &Mailer{cfg: cfg, resolve: resolve, log: log}
}

// Send implements notification.Messenger.
func (m *Mailer) Send(ctx context.Context, userID, subject, body string) error {
	if m.cfg.Host == "" || m.cfg.User == "" {
		m.log.Info().
			Str("user_id", userID).
			Str("subject", subject).
			Msg("SMTP not configured, logging message instead")
		return nil
	}

	to, err := m.resolve(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve address for user %s: %w", userID, err)
	}

	msg := []byte("To: " + to + "\r\n" +
		"From: " + m.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

var _ notification.Messenger = (*Mailer)(nil)
