package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/darezone/darezone-ledger/internal/domain/challenge"
	"github.com/darezone/darezone-ledger/internal/domain/membership"
	"github.com/darezone/darezone-ledger/internal/domain/reminder"
	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/internal/infrastructure/persistence/memory"
	"github.com/darezone/darezone-ledger/pkg/keymutex"
	"github.com/darezone/darezone-ledger/pkg/logger"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

const (
	testChallengeID = "ch-1"
	testHabitID     = "habit-run"
	testSenderID    = "user-sender"
)

func newFixture(t *testing.T, quota int) (*Service, *memory.Store, *timeutil.FixedClock) {
	t.Helper()

	store := memory.NewStore()
	clock := timeutil.NewFixedClock(time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC))

	store.PutChallenge(&challenge.Challenge{
		ID:        testChallengeID,
		StartDate: timeutil.DayOf(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   timeutil.DayOf(time.Date(2025, 3, 30, 0, 0, 0, 0, time.UTC)),
		Status:    challenge.StatusActive,
		HabitIDs:  []string{testHabitID},
	})
	store.PutMembership(&membership.Membership{
		ChallengeID:   testChallengeID,
		UserID:        testSenderID,
		Status:        membership.StatusActive,
		ReminderQuota: quota,
	})

	svc := NewService(store, keymutex.New(), clock, nil, logger.Default(), Config{MaxTargetsPerCall: 10})
	return svc, store, clock
}

func addMember(store *memory.Store, userID string, status membership.Status) {
	store.PutMembership(&membership.Membership{
		ChallengeID: testChallengeID,
		UserID:      userID,
		Status:      status,
	})
}

func sendCmd(targets ...string) SendReminderCommand {
	return SendReminderCommand{
		ChallengeID: testChallengeID,
		HabitID:     testHabitID,
		SenderID:    testSenderID,
		TargetIDs:   targets,
	}
}

func TestSendReminder_QuotaConsumedOncePerCall(t *testing.T) {
	svc, store, _ := newFixture(t, 2)
	ctx := context.Background()
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		addMember(store, u, membership.StatusActive)
	}

	res, err := svc.SendReminder(ctx, sendCmd("a", "b", "c", "d", "e"))
	assert.NoError(t, err)
	assert.Equal(t, 5, res.SentCount)
	assert.Equal(t, 1, res.RemainingQuota)
}

func TestSendReminder_DedupPerDay(t *testing.T) {
	// Sender with quota 2 sends to [a, b] where b was already reminded
	// today: only a receives an entry, quota drops to 1.
	svc, store, _ := newFixture(t, 2)
	ctx := context.Background()
	addMember(store, "a", membership.StatusActive)
	addMember(store, "b", membership.StatusActive)

	res, err := svc.SendReminder(ctx, sendCmd("b"))
	assert.NoError(t, err)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, 1, res.RemainingQuota)

	res, err = svc.SendReminder(ctx, sendCmd("a", "b"))
	assert.NoError(t, err)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, []string{"a"}, res.SentTo)
	assert.Equal(t, 0, res.RemainingQuota)
}

func TestSendReminder_AllDuplicates(t *testing.T) {
	svc, store, _ := newFixture(t, 5)
	ctx := context.Background()
	addMember(store, "a", membership.StatusActive)

	_, err := svc.SendReminder(ctx, sendCmd("a"))
	assert.NoError(t, err)

	_, err = svc.SendReminder(ctx, sendCmd("a"))
	assert.ErrorIs(t, err, shared.ErrNoEligibleTargets)

	// A failed call must not burn quota.
	m, err := store.GetMembership(ctx, testChallengeID, testSenderID)
	assert.NoError(t, err)
	assert.Equal(t, 4, m.ReminderQuota)
}

func TestSendReminder_NextDayResetsDedup(t *testing.T) {
	svc, store, clock := newFixture(t, 5)
	ctx := context.Background()
	addMember(store, "a", membership.StatusActive)

	_, err := svc.SendReminder(ctx, sendCmd("a"))
	assert.NoError(t, err)

	clock.AdvanceDays(1)
	res, err := svc.SendReminder(ctx, sendCmd("a"))
	assert.NoError(t, err)
	assert.Equal(t, 1, res.SentCount)
}

func TestSendReminder_SkipsIneligibleSilently(t *testing.T) {
	svc, store, _ := newFixture(t, 3)
	ctx := context.Background()
	addMember(store, "active", membership.StatusActive)
	addMember(store, "gone", membership.StatusLeft)

	res, err := svc.SendReminder(ctx, sendCmd("active", "gone", "never-joined", testSenderID))
	assert.NoError(t, err)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, []string{"active"}, res.SentTo)
}

func TestSendReminder_QuotaExhausted(t *testing.T) {
	svc, store, _ := newFixture(t, 0)
	ctx := context.Background()
	addMember(store, "a", membership.StatusActive)

	_, err := svc.SendReminder(ctx, sendCmd("a"))
	assert.ErrorIs(t, err, shared.ErrQuotaExhausted)
}

func TestSendReminder_InvalidTargetList(t *testing.T) {
	svc, _, _ := newFixture(t, 5)
	ctx := context.Background()

	_, err := svc.SendReminder(ctx, sendCmd())
	assert.ErrorIs(t, err, shared.ErrInvalidTargets)

	oversized := make([]string, 11)
	for i := range oversized {
		oversized[i] = "u"
	}
	_, err = svc.SendReminder(ctx, sendCmd(oversized...))
	assert.ErrorIs(t, err, shared.ErrInvalidTargets)
}

// flakyStore wraps the in-memory store and makes CommitReminders report a
// transient store failure a fixed number of times.
type flakyStore struct {
	*memory.Store
	failures int
	attempts int
}

func (f *flakyStore) CommitReminders(ctx context.Context, entries []*reminder.LogEntry, sender *membership.Membership) error {
	f.attempts++
	if f.attempts <= f.failures {
		return shared.NewDomainError("store", "CommitReminders", shared.ErrStoreUnavailable, "connection reset")
	}
	return f.Store.CommitReminders(ctx, entries, sender)
}

func newFlakyFixture(t *testing.T, quota, failures int) (*Service, *flakyStore) {
	t.Helper()
	_, store, clock := newFixture(t, quota)
	flaky := &flakyStore{Store: store, failures: failures}
	svc := NewService(flaky, keymutex.New(), clock, nil, logger.Default(), Config{MaxTargetsPerCall: 10})
	return svc, flaky
}

func TestSendReminder_TransientStoreFailureRetried(t *testing.T) {
	svc, flaky := newFlakyFixture(t, 2, 1)
	ctx := context.Background()
	addMember(flaky.Store, "a", membership.StatusActive)

	res, err := svc.SendReminder(ctx, sendCmd("a"))
	assert.NoError(t, err)
	assert.Equal(t, 1, res.SentCount)
	assert.Equal(t, 1, res.RemainingQuota)
	assert.Equal(t, 2, flaky.attempts)

	// The replay re-reads the sender, so the budget drops exactly once.
	m, err := flaky.GetMembership(ctx, testChallengeID, testSenderID)
	assert.NoError(t, err)
	assert.Equal(t, 1, m.ReminderQuota)
}

func TestSendReminder_PersistentStoreFailureSurfaces(t *testing.T) {
	// One bounded retry: the second transient failure ends the call.
	svc, flaky := newFlakyFixture(t, 2, 3)
	ctx := context.Background()
	addMember(flaky.Store, "a", membership.StatusActive)

	_, err := svc.SendReminder(ctx, sendCmd("a"))
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.Equal(t, 2, flaky.attempts)

	// A failed call must burn neither quota nor log entries.
	m, err := flaky.GetMembership(ctx, testChallengeID, testSenderID)
	assert.NoError(t, err)
	assert.Equal(t, 2, m.ReminderQuota)

	exists, err := flaky.ReminderExists(ctx, testHabitID, testSenderID, "a", timeutil.DayOf(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestSendReminder_SenderNotAMember(t *testing.T) {
	svc, store, _ := newFixture(t, 5)
	ctx := context.Background()
	addMember(store, "a", membership.StatusActive)

	cmd := sendCmd("a")
	cmd.SenderID = "user-stranger"
	_, err := svc.SendReminder(ctx, cmd)
	assert.ErrorIs(t, err, shared.ErrNotAMember)
}
