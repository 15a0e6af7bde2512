package mail

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/charlesng35/authgate/pkg/logger"
)

// ConsoleMailer logs messages instead of delivering them. It is the default
// adapter outside production so magic links stay visible during development.
type ConsoleMailer struct {
	log *zap.Logger
}

// NewConsoleMailer builds a console-backed mailer.
func NewConsoleMailer() *ConsoleMailer {
	return &ConsoleMailer{log: logger.WithModule("mail")}
}

// Send writes the message to the log.
func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("console mailer: recipient is required")
	}

	m.log.Info("outbound email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

// New selects a mail adapter: SMTP when enabled, console otherwise.
// Production refuses to fall back to the console adapter so verification
// links never end up only in logs.
func New(cfg SMTPSettings, production bool) (Mailer, error) {
	if cfg.Enabled {
		return NewSMTPMailer(cfg)
	}
	if production {
		return nil, errors.New("mail: smtp must be configured in production")
	}
	return NewConsoleMailer(), nil
}
