package mailer

import (
	"go.uber.org/zap"
)

// ConsoleMailer logs invitations instead of sending them. Used in
// development and in tests.
type ConsoleMailer struct {
	log *zap.Logger
}

// NewConsoleMailer creates a mailer that writes invitations to the log
func NewConsoleMailer(log *zap.Logger) *ConsoleMailer {
	return &ConsoleMailer{log: log}
}

func (m *ConsoleMailer) SendInvitation(inv Invitation) error {
	m.log.Info("invitation email",
		zap.String("to", inv.ToEmail),
		zap.String("name", inv.ToName),
		zap.String("center", inv.CenterName),
		zap.String("role", inv.Role),
		zap.String("token", inv.Token),
	)
	return nil
}
