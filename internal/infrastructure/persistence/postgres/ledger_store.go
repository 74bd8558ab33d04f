package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/darezone/darezone-ledger/internal/domain/challenge"
	"github.com/darezone/darezone-ledger/internal/domain/checkin"
	"github.com/darezone/darezone-ledger/internal/domain/membership"
	"github.com/darezone/darezone-ledger/internal/domain/reminder"
	"github.com/darezone/darezone-ledger/internal/domain/shared"
	"github.com/darezone/darezone-ledger/internal/domain/stats"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

// LedgerStore is the PostgreSQL LedgerStore. One type serves the check-in
// ledger, the reminder throttle, and the stats aggregator; they share the
// same tables and the same transactional guarantees.
type LedgerStore struct {
	conn *Connection
}

// NewLedgerStore creates a LedgerStore on an open connection.
func NewLedgerStore(conn *Connection) *LedgerStore {
	return &LedgerStore{conn: conn}
}

// storeErr maps driver failures onto the domain taxonomy: transient and
// connection-level failures become store-unavailable (retryable once by the
// caller), everything else passes through.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNoRows(err) {
		return shared.ErrNotFound
	}
	return shared.WrapError("store", op, shared.ErrStoreUnavailable, "query failed", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// READS
// ══════════════════════════════════════════════════════════════════════════════

// GetChallenge loads a challenge by ID.
func (s *LedgerStore) GetChallenge(ctx context.Context, challengeID string) (*challenge.Challenge, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, name, start_date, end_date, status, habit_ids
		FROM challenges WHERE id = $1
	`, challengeID)

	ch, err := scanChallenge(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, storeErr("GetChallenge", err)
	}
	return ch, nil
}

// GetMembership loads the membership for (challengeID, userID).
func (s *LedgerStore) GetMembership(ctx context.Context, challengeID, userID string) (*membership.Membership, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT challenge_id, user_id, role, status,
		       current_streak, longest_streak, total_checkins, points_earned,
		       reminder_quota, last_checkin_at, joined_at
		FROM memberships WHERE challenge_id = $1 AND user_id = $2
	`, challengeID, userID)

	m, err := scanMembership(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMembershipNotFound
		}
		return nil, storeErr("GetMembership", err)
	}
	return m, nil
}

const checkInColumns = `id, challenge_id, habit_id, user_id, day,
	photo_url, video_url, caption, on_time, created_at, updated_at`

// GetCheckIn loads the check-in for the full natural key.
func (s *LedgerStore) GetCheckIn(ctx context.Context, challengeID, habitID, userID string, day timeutil.Day) (*checkin.CheckIn, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+checkInColumns+`
		FROM check_ins
		WHERE challenge_id = $1 AND habit_id = $2 AND user_id = $3 AND day = $4
	`, challengeID, habitID, userID, day.Time())

	ci, err := scanCheckIn(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCheckInNotFound
		}
		return nil, storeErr("GetCheckIn", err)
	}
	return ci, nil
}

// GetCheckInByID loads a check-in by surrogate ID.
func (s *LedgerStore) GetCheckInByID(ctx context.Context, id string) (*checkin.CheckIn, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+checkInColumns+` FROM check_ins WHERE id = $1
	`, id)

	ci, err := scanCheckIn(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCheckInNotFound
		}
		return nil, storeErr("GetCheckInByID", err)
	}
	return ci, nil
}

// ListCheckIns returns every check-in for (challengeID, habitID, userID).
func (s *LedgerStore) ListCheckIns(ctx context.Context, challengeID, habitID, userID string) ([]*checkin.CheckIn, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+checkInColumns+`
		FROM check_ins
		WHERE challenge_id = $1 AND habit_id = $2 AND user_id = $3
		ORDER BY day
	`, challengeID, habitID, userID)
	if err != nil {
		return nil, storeErr("ListCheckIns", err)
	}
	defer rows.Close()

	var out []*checkin.CheckIn
	for rows.Next() {
		ci, err := scanCheckIn(rows)
		if err != nil {
			return nil, storeErr("ListCheckIns", err)
		}
		out = append(out, ci)
	}
	return out, storeErr("ListCheckIns", rows.Err())
}

// ReminderExists reports whether a log entry exists for the dedup key.
func (s *LedgerStore) ReminderExists(ctx context.Context, habitID, senderID, targetID string, day timeutil.Day) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reminder_log
			WHERE habit_id = $1 AND sender_id = $2 AND target_id = $3 AND day = $4
		)
	`, habitID, senderID, targetID, day.Time()).Scan(&exists)
	if err != nil {
		return false, storeErr("ReminderExists", err)
	}
	return exists, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMITS
// ══════════════════════════════════════════════════════════════════════════════

// CommitCheckIn inserts the check-in and persists the membership counters in
// one transaction. The unique constraint turns a lost-update race into a
// duplicate error instead of a double award.
func (s *LedgerStore) CommitCheckIn(ctx context.Context, ci *checkin.CheckIn, m *membership.Membership) error {
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO check_ins (id, challenge_id, habit_id, user_id, day,
				photo_url, video_url, caption, on_time, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, ci.ID, ci.ChallengeID, ci.HabitID, ci.UserID, ci.Day.Time(),
			ci.Evidence.PhotoURL, ci.Evidence.VideoURL, ci.Evidence.Caption,
			ci.OnTime, ci.CreatedAt, ci.UpdatedAt)
		if err != nil {
			return err
		}
		return updateMembership(ctx, tx, m)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateCheckIn
		}
		return storeErr("CommitCheckIn", err)
	}
	return nil
}

// CommitRetraction deletes the check-in and persists the restated membership
// counters in one transaction.
func (s *LedgerStore) CommitRetraction(ctx context.Context, checkInID string, m *membership.Membership) error {
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM check_ins WHERE id = $1`, checkInID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrCheckInNotFound
		}
		return updateMembership(ctx, tx, m)
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return err
		}
		return storeErr("CommitRetraction", err)
	}
	return nil
}

// UpdateCheckIn persists a caption edit.
func (s *LedgerStore) UpdateCheckIn(ctx context.Context, ci *checkin.CheckIn) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE check_ins SET caption = $2, updated_at = $3 WHERE id = $1
	`, ci.ID, ci.Evidence.Caption, ci.UpdatedAt)
	if err != nil {
		return storeErr("UpdateCheckIn", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCheckInNotFound
	}
	return nil
}

// CommitReminders inserts the log entries and the sender's quota decrement
// in one transaction.
func (s *LedgerStore) CommitReminders(ctx context.Context, entries []*reminder.LogEntry, sender *membership.Membership) error {
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, e := range entries {
			_, err := tx.Exec(ctx, `
				INSERT INTO reminder_log (id, challenge_id, habit_id, sender_id, target_id, day, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, e.ID, e.ChallengeID, e.HabitID, e.SenderID, e.TargetID, e.Day.Time(), e.CreatedAt)
			if err != nil {
				return err
			}
		}
		return updateMembership(ctx, tx, sender)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("store", "CommitReminders", shared.ErrAlreadyExists, "reminder already logged for this key")
		}
		return storeErr("CommitReminders", err)
	}
	return nil
}

// updateMembership writes the counter fields inside a transaction. Role and
// status belong to the membership lifecycle collaborator and are not touched.
func updateMembership(ctx context.Context, tx pgx.Tx, m *membership.Membership) error {
	tag, err := tx.Exec(ctx, `
		UPDATE memberships
		SET current_streak = $3, longest_streak = $4, total_checkins = $5,
		    points_earned = $6, reminder_quota = $7, last_checkin_at = $8
		WHERE challenge_id = $1 AND user_id = $2
	`, m.ChallengeID, m.UserID, m.CurrentStreak, m.LongestStreak,
		m.TotalCheckIns, m.PointsEarned, m.ReminderQuota, m.LastCheckInAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMembershipNotFound
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot reads every source record for one challenge inside a single
// repeatable-read transaction, so the aggregator sees one instant.
func (s *LedgerStore) Snapshot(ctx context.Context, challengeID string) (*stats.Snapshot, error) {
	snap := &stats.Snapshot{}
	err := s.conn.WithTx(ctx, SnapshotTxOptions(), func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, name, start_date, end_date, status, habit_ids
			FROM challenges WHERE id = $1
		`, challengeID)
		ch, err := scanChallenge(row)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrChallengeNotFound
			}
			return err
		}
		snap.Challenge = ch

		rows, err := tx.Query(ctx, `
			SELECT challenge_id, user_id, role, status,
			       current_streak, longest_streak, total_checkins, points_earned,
			       reminder_quota, last_checkin_at, joined_at
			FROM memberships WHERE challenge_id = $1
		`, challengeID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMembership(rows)
			if err != nil {
				return err
			}
			snap.Memberships = append(snap.Memberships, m)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		ciRows, err := tx.Query(ctx, `
			SELECT habit_id, user_id, day FROM check_ins WHERE challenge_id = $1
		`, challengeID)
		if err != nil {
			return err
		}
		defer ciRows.Close()
		for ciRows.Next() {
			var habitID, userID string
			var day time.Time
			if err := ciRows.Scan(&habitID, &userID, &day); err != nil {
				return err
			}
			snap.CheckIns = append(snap.CheckIns, stats.CheckInRecord{
				HabitID: habitID,
				UserID:  userID,
				Day:     timeutil.DayOf(day),
			})
		}
		return ciRows.Err()
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		return nil, storeErr("Snapshot", err)
	}
	snap.TakenAt = time.Now().UTC()
	return snap, nil
}

// SaveResult replaces the challenge's aggregates wholesale: delete then
// insert inside one transaction, so readers never see a partial rank table.
func (s *LedgerStore) SaveResult(ctx context.Context, result *stats.Result) error {
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM member_stats WHERE challenge_id = $1`, result.ChallengeID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM habit_aggregates WHERE challenge_id = $1`, result.ChallengeID); err != nil {
			return err
		}

		for _, m := range result.Members {
			_, err := tx.Exec(ctx, `
				INSERT INTO member_stats (challenge_id, user_id, points_earned, current_streak,
					total_checkins, completion_rate, points_rank, completion_rank, computed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, m.ChallengeID, m.UserID, m.PointsEarned, m.CurrentStreak,
				m.TotalCheckIns, m.CompletionRate, m.PointsRank, m.CompletionRank, m.ComputedAt)
			if err != nil {
				return err
			}
		}

		for _, h := range result.Habits {
			_, err := tx.Exec(ctx, `
				INSERT INTO habit_aggregates (challenge_id, habit_id, total_checkins, completion_rate, computed_at)
				VALUES ($1, $2, $3, $4, $5)
			`, h.ChallengeID, h.HabitID, h.TotalCheckIns, h.CompletionRate, h.ComputedAt)
			if err != nil {
				return err
			}
		}

		sum := result.Summary
		_, err := tx.Exec(ctx, `
			INSERT INTO challenge_summaries (challenge_id, total_members, active_members,
				avg_completion_rate, avg_points, avg_streak, total_checkins, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (challenge_id) DO UPDATE SET
				total_members = EXCLUDED.total_members,
				active_members = EXCLUDED.active_members,
				avg_completion_rate = EXCLUDED.avg_completion_rate,
				avg_points = EXCLUDED.avg_points,
				avg_streak = EXCLUDED.avg_streak,
				total_checkins = EXCLUDED.total_checkins,
				computed_at = EXCLUDED.computed_at
		`, sum.ChallengeID, sum.TotalMembers, sum.ActiveMembers,
			sum.AvgCompletionRate, sum.AvgPoints, sum.AvgStreak, sum.TotalCheckIns, sum.ComputedAt)
		return err
	})
	if err != nil {
		return storeErr("SaveResult", err)
	}
	return nil
}

// ListDayCheckIns returns the check-ins for one challenge and day.
func (s *LedgerStore) ListDayCheckIns(ctx context.Context, challengeID string, day timeutil.Day) ([]stats.DayCheckIn, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT habit_id, user_id, created_at, photo_url
		FROM check_ins WHERE challenge_id = $1 AND day = $2
	`, challengeID, day.Time())
	if err != nil {
		return nil, storeErr("ListDayCheckIns", err)
	}
	defer rows.Close()

	var out []stats.DayCheckIn
	for rows.Next() {
		var ci stats.DayCheckIn
		if err := rows.Scan(&ci.HabitID, &ci.UserID, &ci.CreatedAt, &ci.PhotoURL); err != nil {
			return nil, storeErr("ListDayCheckIns", err)
		}
		out = append(out, ci)
	}
	return out, storeErr("ListDayCheckIns", rows.Err())
}

// ══════════════════════════════════════════════════════════════════════════════
// ROW SCANNING
// ══════════════════════════════════════════════════════════════════════════════

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var (
		ch         challenge.Challenge
		status     string
		start, end time.Time
	)
	if err := row.Scan(&ch.ID, &ch.Name, &start, &end, &status, &ch.HabitIDs); err != nil {
		return nil, err
	}
	ch.StartDate = timeutil.DayOf(start)
	ch.EndDate = timeutil.DayOf(end)
	ch.Status = challenge.Status(status)
	return &ch, nil
}

func scanMembership(row pgx.Row) (*membership.Membership, error) {
	var (
		m            membership.Membership
		role, status string
	)
	if err := row.Scan(&m.ChallengeID, &m.UserID, &role, &status,
		&m.CurrentStreak, &m.LongestStreak, &m.TotalCheckIns, &m.PointsEarned,
		&m.ReminderQuota, &m.LastCheckInAt, &m.JoinedAt); err != nil {
		return nil, err
	}
	m.Role = membership.Role(role)
	m.Status = membership.Status(status)
	return &m, nil
}

func scanCheckIn(row pgx.Row) (*checkin.CheckIn, error) {
	var (
		ci  checkin.CheckIn
		day time.Time
	)
	if err := row.Scan(&ci.ID, &ci.ChallengeID, &ci.HabitID, &ci.UserID, &day,
		&ci.Evidence.PhotoURL, &ci.Evidence.VideoURL, &ci.Evidence.Caption,
		&ci.OnTime, &ci.CreatedAt, &ci.UpdatedAt); err != nil {
		return nil, err
	}
	ci.Day = timeutil.DayOf(day)
	return &ci, nil
}
