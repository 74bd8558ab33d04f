// Package memory provides an in-memory LedgerStore. It backs unit tests and
// single-process deployments; the postgres store is the production twin. Both
// enforce the same natural-key uniqueness so the engine's duplicate handling
// behaves identically against either.
package memory

import (
	"context"
	"sync"

	"github.com/darezone/darezone-ledger/internal/domain/challenge"
	"github.com/darezone/darezone-ledger/internal/domain/checkin"
	"github.com/darezone/darezone-ledger/internal/domain/membership"
	"github.com/darezone/darezone-ledger/internal/domain/reminder"
	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/internal/domain/stats"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// Store holds every ledger record behind one mutex. The global lock makes
// Snapshot trivially consistent and commit methods trivially atomic.
type Store struct {
	mu sync.RWMutex

	challenges  map[string]*challenge.Challenge
	memberships map[string]*membership.Membership // key: challengeID/userID
	checkIns    map[string]*checkin.CheckIn       // key: surrogate ID
	checkInKeys map[string]string                 // natural key -> surrogate ID
	reminders   map[string]*reminder.LogEntry     // key: natural (dedup) key

	results map[string]*stats.Result // key: challengeID
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		challenges:  make(map[string]*challenge.Challenge),
		memberships: make(map[string]*membership.Membership),
		checkIns:    make(map[string]*checkin.CheckIn),
		checkInKeys: make(map[string]string),
		reminders:   make(map[string]*reminder.LogEntry),
		results:     make(map[string]*stats.Result),
	}
}

func membershipKey(challengeID, userID string) string {
	return challengeID + "/" + userID
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING (used by tests and the dev wiring)
// ══════════════════════════════════════════════════════════════════════════════

// PutChallenge stores a challenge.
func (s *Store) PutChallenge(ch *challenge.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ch
	s.challenges[ch.ID] = &cp
}

// PutMembership stores a membership.
func (s *Store) PutMembership(m *membership.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.memberships[membershipKey(m.ChallengeID, m.UserID)] = &cp
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// GetChallenge loads a challenge by ID.
func (s *Store) GetChallenge(_ context.Context, challengeID string) (*challenge.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.challenges[challengeID]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	cp := *ch
	return &cp, nil
}

// GetMembership loads the membership for (challengeID, userID).
func (s *Store) GetMembership(_ context.Context, challengeID, userID string) (*membership.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[membershipKey(challengeID, userID)]
	if !ok {
		return nil, shared.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

// GetCheckIn loads the check-in for the full natural key.
func (s *Store) GetCheckIn(_ context.Context, challengeID, habitID, userID string, day timeutil.Day) (*checkin.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.checkInKeys[naturalKey(challengeID, habitID, userID, day)]
	if !ok {
		return nil, shared.ErrCheckInNotFound
	}
	cp := *s.checkIns[id]
	return &cp, nil
}

// GetCheckInByID loads a check-in by surrogate ID.
func (s *Store) GetCheckInByID(_ context.Context, id string) (*checkin.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ci, ok := s.checkIns[id]
	if !ok {
		return nil, shared.ErrCheckInNotFound
	}
	cp := *ci
	return &cp, nil
}

// ListCheckIns returns every check-in for (challengeID, habitID, userID).
func (s *Store) ListCheckIns(_ context.Context, challengeID, habitID, userID string) ([]*checkin.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*checkin.CheckIn
	for _, ci := range s.checkIns {
		if ci.ChallengeID == challengeID && ci.HabitID == habitID && ci.UserID == userID {
			cp := *ci
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ReminderExists reports whether a log entry exists for the dedup key.
func (s *Store) ReminderExists(_ context.Context, habitID, senderID, targetID string, day timeutil.Day) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reminders[reminder.DedupKey(habitID, senderID, targetID, day)]
	return ok, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMITS
// ══════════════════════════════════════════════════════════════════════════════

// CommitCheckIn inserts the check-in and persists the membership atomically.
func (s *Store) CommitCheckIn(_ context.Context, ci *checkin.CheckIn, m *membership.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := naturalKey(ci.ChallengeID, ci.HabitID, ci.UserID, ci.Day)
	if _, exists := s.checkInKeys[key]; exists {
		return shared.ErrDuplicateCheckIn
	}

	ciCopy := *ci
	mCopy := *m
	s.checkIns[ci.ID] = &ciCopy
	s.checkInKeys[key] = ci.ID
	s.memberships[membershipKey(m.ChallengeID, m.UserID)] = &mCopy
	return nil
}

// CommitRetraction deletes the check-in and persists the restated membership.
func (s *Store) CommitRetraction(_ context.Context, checkInID string, m *membership.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ci, ok := s.checkIns[checkInID]
	if !ok {
		return shared.ErrCheckInNotFound
	}
	delete(s.checkInKeys, naturalKey(ci.ChallengeID, ci.HabitID, ci.UserID, ci.Day))
	delete(s.checkIns, checkInID)

	mCopy := *m
	s.memberships[membershipKey(m.ChallengeID, m.UserID)] = &mCopy
	return nil
}

// UpdateCheckIn persists a caption edit.
func (s *Store) UpdateCheckIn(_ context.Context, ci *checkin.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checkIns[ci.ID]; !ok {
		return shared.ErrCheckInNotFound
	}
	cp := *ci
	s.checkIns[ci.ID] = &cp
	return nil
}

// CommitReminders inserts the log entries and the sender atomically.
func (s *Store) CommitReminders(_ context.Context, entries []*reminder.LogEntry, sender *membership.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if _, exists := s.reminders[e.NaturalKey()]; exists {
			return shared.NewDomainError("store", "CommitReminders", shared.ErrAlreadyExists, "reminder already logged for this key")
		}
	}
	for _, e := range entries {
		cp := *e
		s.reminders[e.NaturalKey()] = &cp
	}

	mCopy := *sender
	s.memberships[membershipKey(sender.ChallengeID, sender.UserID)] = &mCopy
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot reads every source record for one challenge under the lock, so
// the result reflects a single instant.
func (s *Store) Snapshot(_ context.Context, challengeID string) (*stats.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.challenges[challengeID]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	chCopy := *ch

	snap := &stats.Snapshot{Challenge: &chCopy}
	for _, m := range s.memberships {
		if m.ChallengeID == challengeID {
			cp := *m
			snap.Memberships = append(snap.Memberships, &cp)
		}
	}
	for _, ci := range s.checkIns {
		if ci.ChallengeID == challengeID {
			snap.CheckIns = append(snap.CheckIns, stats.CheckInRecord{
				HabitID: ci.HabitID,
				UserID:  ci.UserID,
				Day:     ci.Day,
			})
		}
	}
	return snap, nil
}

// SaveResult replaces the challenge's aggregates wholesale.
func (s *Store) SaveResult(_ context.Context, result *stats.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.ChallengeID] = result
	return nil
}

// GetResult returns the last saved aggregates for a challenge.
func (s *Store) GetResult(_ context.Context, challengeID string) (*stats.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[challengeID]
	if !ok {
		return nil, shared.ErrAggregateNotFound
	}
	return r, nil
}

// ListDayCheckIns returns the check-ins for one challenge and day.
func (s *Store) ListDayCheckIns(_ context.Context, challengeID string, day timeutil.Day) ([]stats.DayCheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []stats.DayCheckIn
	for _, ci := range s.checkIns {
		if ci.ChallengeID == challengeID && ci.Day == day {
			out = append(out, stats.DayCheckIn{
				HabitID:   ci.HabitID,
				UserID:    ci.UserID,
				CreatedAt: ci.CreatedAt,
				PhotoURL:  ci.Evidence.PhotoURL,
			})
		}
	}
	return out, nil
}

func naturalKey(challengeID, habitID, userID string, day timeutil.Day) string {
	return checkin.Key(challengeID, habitID, userID) + "/" + day.String()
}
