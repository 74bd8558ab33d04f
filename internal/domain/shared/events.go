// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the ledger.
const (
	// Check-in events
	EventCheckInRecorded  EventType = "checkin.recorded"
	EventCheckInRetracted EventType = "checkin.retracted"
	EventStreakExtended   EventType = "checkin.streak_extended"
	EventStreakBroken     EventType = "checkin.streak_broken"

	// Reminder events
	EventReminderSent EventType = "reminder.sent"

	// Stats events
	EventStatsRefreshed EventType = "stats.refreshed"
	EventChallengeDirty EventType = "stats.challenge_dirty"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a published event. Handlers must be safe for
// concurrent use; the bus may invoke them from multiple workers.
type EventHandler func(event Event) error

// EventPublisher publishes domain events to interested subscribers.
// Publishing is fire-and-forget from the publisher's perspective; delivery
// failures are the bus's problem, never the ledger operation's.
type EventPublisher interface {
	// Publish delivers the event to all subscribers of its type.
	Publish(event Event) error
}

// EventBus is a publisher that also accepts subscriptions.
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error

	// Close shuts the bus down, waiting for in-flight handlers.
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Check-in Events
// ═══════════════════════════════════════════════════════════════════════════

// CheckInRecordedEvent is emitted after a check-in commits to the ledger.
type CheckInRecordedEvent struct {
	BaseEvent
	CheckInID   string `json:"checkin_id"`
	ChallengeID string `json:"challenge_id"`
	HabitID     string `json:"habit_id"`
	UserID      string `json:"user_id"`
	Day         string `json:"day"`
	Streak      int    `json:"streak"`
	Points      int    `json:"points"`
	Broken      bool   `json:"broken"`
}

// Payload implements Event interface.
func (e CheckInRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"checkin_id":   e.CheckInID,
		"challenge_id": e.ChallengeID,
		"habit_id":     e.HabitID,
		"user_id":      e.UserID,
		"day":          e.Day,
		"streak":       e.Streak,
		"points":       e.Points,
		"broken":       e.Broken,
	}
}

// NewCheckInRecordedEvent creates a new CheckInRecordedEvent.
func NewCheckInRecordedEvent(checkInID, challengeID, habitID, userID, day string, streak, points int, broken bool) CheckInRecordedEvent {
	return CheckInRecordedEvent{
		BaseEvent:   NewBaseEvent(EventCheckInRecorded, checkInID),
		CheckInID:   checkInID,
		ChallengeID: challengeID,
		HabitID:     habitID,
		UserID:      userID,
		Day:         day,
		Streak:      streak,
		Points:      points,
		Broken:      broken,
	}
}

// CheckInRetractedEvent is emitted after an owner deletes a check-in and the
// membership stats have been recomputed from the remaining history.
type CheckInRetractedEvent struct {
	BaseEvent
	CheckInID   string `json:"checkin_id"`
	ChallengeID string `json:"challenge_id"`
	HabitID     string `json:"habit_id"`
	UserID      string `json:"user_id"`
	NewStreak   int    `json:"new_streak"`
}

// Payload implements Event interface.
func (e CheckInRetractedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"checkin_id":   e.CheckInID,
		"challenge_id": e.ChallengeID,
		"habit_id":     e.HabitID,
		"user_id":      e.UserID,
		"new_streak":   e.NewStreak,
	}
}

// NewCheckInRetractedEvent creates a new CheckInRetractedEvent.
func NewCheckInRetractedEvent(checkInID, challengeID, habitID, userID string, newStreak int) CheckInRetractedEvent {
	return CheckInRetractedEvent{
		BaseEvent:   NewBaseEvent(EventCheckInRetracted, checkInID),
		CheckInID:   checkInID,
		ChallengeID: challengeID,
		HabitID:     habitID,
		UserID:      userID,
		NewStreak:   newStreak,
	}
}

// StreakExtendedEvent is emitted when a check-in continues a run of
// consecutive days (streak of two or more).
type StreakExtendedEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	HabitID     string `json:"habit_id"`
	UserID      string `json:"user_id"`
	Streak      int    `json:"streak"`
}

// Payload implements Event interface.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"habit_id":     e.HabitID,
		"user_id":      e.UserID,
		"streak":       e.Streak,
	}
}

// NewStreakExtendedEvent creates a new StreakExtendedEvent.
func NewStreakExtendedEvent(challengeID, habitID, userID string, streak int) StreakExtendedEvent {
	return StreakExtendedEvent{
		BaseEvent:   NewBaseEvent(EventStreakExtended, userID),
		ChallengeID: challengeID,
		HabitID:     habitID,
		UserID:      userID,
		Streak:      streak,
	}
}

// StreakBrokenEvent is emitted when a check-in lands after a gap and the
// member starts over from a streak of one.
type StreakBrokenEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	HabitID     string `json:"habit_id"`
	UserID      string `json:"user_id"`
	Streak      int    `json:"streak"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"habit_id":     e.HabitID,
		"user_id":      e.UserID,
		"streak":       e.Streak,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(challengeID, habitID, userID string, streak int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:   NewBaseEvent(EventStreakBroken, userID),
		ChallengeID: challengeID,
		HabitID:     habitID,
		UserID:      userID,
		Streak:      streak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reminder Events
// ═══════════════════════════════════════════════════════════════════════════

// ReminderSentEvent is emitted after a hitch reminder log entry commits.
// The notification collaborator consumes it to deliver the push; the log
// entry is authoritative even if delivery fails.
type ReminderSentEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	HabitID     string `json:"habit_id"`
	SenderID    string `json:"sender_id"`
	TargetID    string `json:"target_id"`
	Day         string `json:"day"`
}

// Payload implements Event interface.
func (e ReminderSentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"habit_id":     e.HabitID,
		"sender_id":    e.SenderID,
		"target_id":    e.TargetID,
		"day":          e.Day,
	}
}

// NewReminderSentEvent creates a new ReminderSentEvent.
func NewReminderSentEvent(challengeID, habitID, senderID, targetID, day string) ReminderSentEvent {
	return ReminderSentEvent{
		BaseEvent:   NewBaseEvent(EventReminderSent, targetID),
		ChallengeID: challengeID,
		HabitID:     habitID,
		SenderID:    senderID,
		TargetID:    targetID,
		Day:         day,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Events
// ═══════════════════════════════════════════════════════════════════════════

// NotificationSentEvent is emitted after a push delivery succeeds.
type NotificationSentEvent struct {
	BaseEvent
	TargetUserID string `json:"target_user_id"`
	Kind         string `json:"kind"`
}

// Payload implements Event interface.
func (e NotificationSentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"target_user_id": e.TargetUserID,
		"kind":           e.Kind,
	}
}

// NewNotificationSentEvent creates a new NotificationSentEvent.
func NewNotificationSentEvent(targetUserID, kind string) NotificationSentEvent {
	return NotificationSentEvent{
		BaseEvent:    NewBaseEvent(EventNotificationSent, targetUserID),
		TargetUserID: targetUserID,
		Kind:         kind,
	}
}

// NotificationFailedEvent is emitted after a push delivery gives up. The
// reminder log entry stays authoritative; this event exists for monitoring.
type NotificationFailedEvent struct {
	BaseEvent
	TargetUserID string `json:"target_user_id"`
	Kind         string `json:"kind"`
	Reason       string `json:"reason"`
}

// Payload implements Event interface.
func (e NotificationFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"target_user_id": e.TargetUserID,
		"kind":           e.Kind,
		"reason":         e.Reason,
	}
}

// NewNotificationFailedEvent creates a new NotificationFailedEvent.
func NewNotificationFailedEvent(targetUserID, kind, reason string) NotificationFailedEvent {
	return NotificationFailedEvent{
		BaseEvent:    NewBaseEvent(EventNotificationFailed, targetUserID),
		TargetUserID: targetUserID,
		Kind:         kind,
		Reason:       reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Stats Events
// ═══════════════════════════════════════════════════════════════════════════

// ChallengeDirtyEvent marks a challenge's aggregates as stale after a write.
// The scheduler's refresh job consumes it to know which challenges to rebuild.
type ChallengeDirtyEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
}

// Payload implements Event interface.
func (e ChallengeDirtyEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
	}
}

// NewChallengeDirtyEvent creates a new ChallengeDirtyEvent.
func NewChallengeDirtyEvent(challengeID string) ChallengeDirtyEvent {
	return ChallengeDirtyEvent{
		BaseEvent:   NewBaseEvent(EventChallengeDirty, challengeID),
		ChallengeID: challengeID,
	}
}

// StatsRefreshedEvent is emitted after a full aggregate rebuild completes.
type StatsRefreshedEvent struct {
	BaseEvent
	ChallengeID string `json:"challenge_id"`
	Members     int    `json:"members"`
	Habits      int    `json:"habits"`
}

// Payload implements Event interface.
func (e StatsRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"members":      e.Members,
		"habits":       e.Habits,
	}
}

// NewStatsRefreshedEvent creates a new StatsRefreshedEvent.
func NewStatsRefreshedEvent(challengeID string, members, habits int) StatsRefreshedEvent {
	return StatsRefreshedEvent{
		BaseEvent:   NewBaseEvent(EventStatsRefreshed, challengeID),
		ChallengeID: challengeID,
		Members:     members,
		Habits:      habits,
	}
}
