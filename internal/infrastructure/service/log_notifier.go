package service

import (
	"context"

	"github.com/darezone/darezone-ledger/pkg/logger"
)

// LogNotifier is the Notifier used when no push gateway is configured. It
// writes each would-be delivery to the log, which keeps the delivery pipeline
// exercised end to end in development and staging.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(logger.Component("log_notifier"))}
}

// Send implements Notifier.
func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	n.log.Info("notification delivered",
		logger.UserID(notification.TargetUserID),
		logger.String("kind", notification.Kind),
		logger.Any("payload", notification.Payload),
	)
	return nil
}
