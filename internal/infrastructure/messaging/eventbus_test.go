package messaging

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: false})
	defer bus.Close()

	var got shared.Event
	err := bus.Subscribe(shared.EventCheckInRecorded, func(e shared.Event) error {
		got = e
		return nil
	})
	assert.NoError(t, err)

	event := shared.NewCheckInRecordedEvent("ci-1", "ch-1", "habit-1", "u-1", "2025-03-01", 1, 10, false)
	assert.NoError(t, bus.Publish(event))

	if assert.NotNil(t, got) {
		assert.Equal(t, shared.EventCheckInRecorded, got.EventType())
		assert.Equal(t, "ci-1", got.AggregateID())
	}
}

func TestInMemoryEventBus_OnlyMatchingType(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: false})
	defer bus.Close()

	var calls int32
	_ = bus.Subscribe(shared.EventReminderSent, func(e shared.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	_ = bus.Publish(shared.NewChallengeDirtyEvent("ch-1"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	_ = bus.Publish(shared.NewReminderSentEvent("ch-1", "h-1", "s-1", "t-1", "2025-03-01"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInMemoryEventBus_SubscribeAll(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: false})
	defer bus.Close()

	var calls int32
	_ = bus.SubscribeAll(func(e shared.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	_ = bus.Publish(shared.NewChallengeDirtyEvent("ch-1"))
	_ = bus.Publish(shared.NewStatsRefreshedEvent("ch-1", 3, 1))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInMemoryEventBus_HandlerErrorDoesNotPropagate(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: false})
	defer bus.Close()

	_ = bus.Subscribe(shared.EventChallengeDirty, func(e shared.Event) error {
		return errors.New("handler boom")
	})

	assert.NoError(t, bus.Publish(shared.NewChallengeDirtyEvent("ch-1")))
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: true, WorkerPoolSize: 4})

	var calls int32
	_ = bus.Subscribe(shared.EventChallengeDirty, func(e shared.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	for i := 0; i < 20; i++ {
		assert.NoError(t, bus.Publish(shared.NewChallengeDirtyEvent("ch-1")))
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 20
	}, time.Second, 5*time.Millisecond)

	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_ClosedRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: false})
	assert.NoError(t, bus.Close())

	err := bus.Publish(shared.NewChallengeDirtyEvent("ch-1"))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}
