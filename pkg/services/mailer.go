package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Mailer delivers outbound notifications to users.
type Mailer interface {
	SendAssignmentNotification(ctx context.Context, to, taskTitle string) error
}

// LogMailer stands in for an email provider: it waits for the configured
// latency and then logs the message it would have sent.
type LogMailer struct {
	latency time.Duration
	logger  *zap.Logger
}

// NewLogMailer creates a mailer that logs instead of sending.
func NewLogMailer(latency time.Duration, logger *zap.Logger) *LogMailer {
	return &LogMailer{
		latency: latency,
		logger:  logger.Named("mailer"),
	}
}

var _ Mailer = (*LogMailer)(nil)

func (m *LogMailer) SendAssignmentNotification(ctx context.Context, to, taskTitle string) error {
	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	m.logger.Info("Sent assignment notification",
		zap.String("to", to),
		zap.String("task_title", taskTitle))
	return nil
}
