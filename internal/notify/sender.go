package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a single outbound message. Implementations wrap the actual
// transport (SMTP here; an SMS gateway would slot in the same way — gateway
// internals are outside the engine).
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NoopSender logs messages to zap instead of delivering them.
// Use in development or when no transport is configured.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a NoopSender backed by the given logger.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the message and returns nil.
func (n *NoopSender) Send(_ context.Context, to, subject, body string) error {
	n.logger.Info("notification (noop — not sent)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
