// Package service contains infrastructure-side adapters that react to ledger
// events: push notification delivery and the dirty-challenge refresh trigger.
package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/pkg/circuitbreaker"
	"github.com/darezone/darezone-ledger/pkg/logger"
	"github.com/darezone/darezone-ledger/pkg/retry"
)

// Notification is one push message to one user.
type Notification struct {
	// TargetUserID is the recipient.
	TargetUserID string

	// Kind names the notification template ("hitch_reminder").
	Kind string

	// Payload carries template parameters.
	Payload map[string]string
}

// Notifier delivers notifications to the external push gateway.
type Notifier interface {
	// Send delivers one notification. Blocking; honors ctx.
	Send(ctx context.Context, n Notification) error
}

// NotificationService consumes reminder events from the bus and delivers
// pushes. Delivery is best-effort by contract: the committed log entry is
// authoritative, so a failed push is logged and dropped, never bounced back
// into the ledger.
type NotificationService struct {
	notifier  Notifier
	limiter   *rate.Limiter
	breaker   *circuitbreaker.CircuitBreaker
	retrier   *retry.Retrier
	publisher shared.EventPublisher
	log       *logger.Logger

	// sendTimeout bounds one delivery attempt against the gateway.
	sendTimeout time.Duration
}

// NotificationConfig tunes delivery pacing.
type NotificationConfig struct {
	// RatePerSecond caps deliveries to the push gateway.
	RatePerSecond float64

	// Burst is the limiter burst size.
	Burst int

	// SendTimeout bounds one delivery attempt.
	SendTimeout time.Duration
}

// DefaultNotificationConfig returns conservative pacing defaults.
func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		RatePerSecond: 20,
		Burst:         5,
		SendTimeout:   5 * time.Second,
	}
}

// NewNotificationService creates the delivery adapter.
func NewNotificationService(notifier Notifier, log *logger.Logger, cfg NotificationConfig) *NotificationService {
	if cfg.RatePerSecond <= 0 {
		cfg = DefaultNotificationConfig()
	}

	svc := &NotificationService{
		notifier:    notifier,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		retrier:     retry.NotificationRetrier(),
		log:         log.With(logger.Component("notification")),
		sendTimeout: cfg.SendTimeout,
	}
	svc.breaker = circuitbreaker.PushGatewayBreaker(func(name string, from, to circuitbreaker.State) {
		svc.log.Warn("push gateway breaker state change",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	return svc
}

// Register subscribes the service to the reminder stream. The bus is also
// kept as the sink for delivery outcome events.
func (s *NotificationService) Register(bus shared.EventBus) error {
	s.publisher = bus
	return bus.Subscribe(shared.EventReminderSent, s.onReminderSent)
}

// onReminderSent handles one committed reminder log entry.
func (s *NotificationService) onReminderSent(event shared.Event) error {
	e, ok := event.(shared.ReminderSentEvent)
	if !ok {
		return nil
	}

	n := Notification{
		TargetUserID: e.TargetID,
		Kind:         "hitch_reminder",
		Payload: map[string]string{
			"challenge_id": e.ChallengeID,
			"habit_id":     e.HabitID,
			"sender_id":    e.SenderID,
			"day":          e.Day,
		},
	}

	if err := s.Deliver(context.Background(), n); err != nil {
		// Best-effort: the log entry already committed.
		s.log.Warn("push delivery failed",
			logger.UserID(e.TargetID),
			logger.HabitID(e.HabitID),
			logger.Err(err),
		)
		s.publish(shared.NewNotificationFailedEvent(e.TargetID, n.Kind, err.Error()))
		return nil
	}

	s.publish(shared.NewNotificationSentEvent(e.TargetID, n.Kind))
	return nil
}

func (s *NotificationService) publish(event shared.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}

// Deliver sends one notification through the limiter, breaker and retrier.
func (s *NotificationService) Deliver(ctx context.Context, n Notification) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	return s.retrier.Do(ctx, func(ctx context.Context) error {
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
			defer cancel()
			return s.notifier.Send(sendCtx, n)
		})
		if err != nil {
			if err == circuitbreaker.ErrCircuitOpen {
				return retry.Permanent(err)
			}
			return retry.Retryable(err)
		}
		return nil
	})
}
