// Package mailer envia o e-mail com o código de rastreio.
package mailer

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNotConfigured indica que não há servidor SMTP configurado.
var ErrNotConfigured = errors.New("email service not configured")

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender entrega uma mensagem pronta.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender só registra o envio. Usado quando o SMTP está desligado e
// log_only está ativo (desenvolvimento).
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	l := s.Logger
	if l == nil {
		l = zap.NewNop()
	}
	l.Info("email not sent (log only)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
