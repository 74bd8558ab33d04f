package service

import (
	"sync"

	"github.com/darezone/darezone-ledger/internal/domain/shared"
)

// RefreshTrigger tracks which challenges have stale aggregates. Ledger writes
// publish a dirty event instead of refreshing inline, so a burst of check-ins
// costs one rebuild on the next sweep, not one per write.
type RefreshTrigger struct {
	mu    sync.Mutex
	dirty map[string]struct{}
}

// NewRefreshTrigger creates an empty trigger.
func NewRefreshTrigger() *RefreshTrigger {
	return &RefreshTrigger{
		dirty: make(map[string]struct{}),
	}
}

// Register subscribes the trigger to the dirty-challenge stream.
func (t *RefreshTrigger) Register(bus shared.EventBus) error {
	return bus.Subscribe(shared.EventChallengeDirty, t.onChallengeDirty)
}

func (t *RefreshTrigger) onChallengeDirty(event shared.Event) error {
	e, ok := event.(shared.ChallengeDirtyEvent)
	if !ok {
		return nil
	}
	t.MarkDirty(e.ChallengeID)
	return nil
}

// MarkDirty flags one challenge for the next sweep. Used by the refresh job
// to requeue a challenge whose rebuild failed.
func (t *RefreshTrigger) MarkDirty(challengeID string) {
	if challengeID == "" {
		return
	}
	t.mu.Lock()
	t.dirty[challengeID] = struct{}{}
	t.mu.Unlock()
}

// Drain returns the dirty set and resets it.
func (t *RefreshTrigger) Drain() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.dirty) == 0 {
		return nil
	}

	ids := make([]string, 0, len(t.dirty))
	for id := range t.dirty {
		ids = append(ids, id)
	}
	t.dirty = make(map[string]struct{})
	return ids
}

// Len returns the current dirty count.
func (t *RefreshTrigger) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dirty)
}
