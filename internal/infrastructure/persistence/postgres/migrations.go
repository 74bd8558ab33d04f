package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_ledger",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_aggregates",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: LEDGER SOURCE TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create the check-in ledger source tables
-- Version: 001

CREATE TABLE IF NOT EXISTS challenges (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(120) NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    habit_ids TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_challenge_status CHECK (status IN ('pending', 'active', 'completed', 'failed')),
    CONSTRAINT valid_date_range CHECK (end_date >= start_date)
);

CREATE INDEX IF NOT EXISTS idx_challenges_status ON challenges(status);

CREATE TABLE IF NOT EXISTS memberships (
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    user_id UUID NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'member',
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    total_checkins INTEGER NOT NULL DEFAULT 0,
    points_earned INTEGER NOT NULL DEFAULT 0,
    reminder_quota INTEGER NOT NULL DEFAULT 2,
    last_checkin_at TIMESTAMP WITH TIME ZONE,
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (challenge_id, user_id),

    CONSTRAINT valid_membership_role CHECK (role IN ('owner', 'admin', 'member')),
    CONSTRAINT valid_membership_status CHECK (status IN ('pending', 'active', 'left', 'kicked')),
    CONSTRAINT non_negative_counters CHECK (
        current_streak >= 0 AND longest_streak >= 0 AND
        total_checkins >= 0 AND points_earned >= 0 AND reminder_quota >= 0
    ),
    CONSTRAINT streak_invariant CHECK (longest_streak >= current_streak)
);

CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships(user_id);
CREATE INDEX IF NOT EXISTS idx_memberships_active ON memberships(challenge_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS check_ins (
    id UUID PRIMARY KEY,
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    habit_id VARCHAR(64) NOT NULL,
    user_id UUID NOT NULL,
    day DATE NOT NULL,
    photo_url TEXT NOT NULL DEFAULT '',
    video_url TEXT NOT NULL DEFAULT '',
    caption TEXT NOT NULL DEFAULT '',
    on_time BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- The one-per-day rule. The application guard enforces it first; this
    -- constraint closes the race window between processes.
    CONSTRAINT uq_checkin_natural_key UNIQUE (challenge_id, habit_id, user_id, day)
);

CREATE INDEX IF NOT EXISTS idx_checkins_member_habit ON check_ins(challenge_id, habit_id, user_id, day DESC);
CREATE INDEX IF NOT EXISTS idx_checkins_challenge_day ON check_ins(challenge_id, day);

CREATE TABLE IF NOT EXISTS reminder_log (
    id UUID PRIMARY KEY,
    challenge_id UUID NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    habit_id VARCHAR(64) NOT NULL,
    sender_id UUID NOT NULL,
    target_id UUID NOT NULL,
    day DATE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- One hitch per (habit, sender, target, day).
    CONSTRAINT uq_reminder_natural_key UNIQUE (habit_id, sender_id, target_id, day)
);

CREATE INDEX IF NOT EXISTS idx_reminder_log_target ON reminder_log(target_id, day);
`

const migration001Down = `
DROP TABLE IF EXISTS reminder_log;
DROP TABLE IF EXISTS check_ins;
DROP TABLE IF EXISTS memberships;
DROP TABLE IF EXISTS challenges;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: DERIVED AGGREGATE TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create the derived aggregate tables
-- Version: 002
-- These are projections rebuilt wholesale by the aggregator; they carry no
-- constraints beyond shape because the ledger tables are the source of truth.

CREATE TABLE IF NOT EXISTS member_stats (
    challenge_id UUID NOT NULL,
    user_id UUID NOT NULL,
    points_earned INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    total_checkins INTEGER NOT NULL DEFAULT 0,
    completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    points_rank INTEGER NOT NULL DEFAULT 0,
    completion_rank INTEGER NOT NULL DEFAULT 0,
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (challenge_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_member_stats_points_rank ON member_stats(challenge_id, points_rank);

CREATE TABLE IF NOT EXISTS habit_aggregates (
    challenge_id UUID NOT NULL,
    habit_id VARCHAR(64) NOT NULL,
    total_checkins INTEGER NOT NULL DEFAULT 0,
    completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (challenge_id, habit_id)
);

CREATE TABLE IF NOT EXISTS challenge_summaries (
    challenge_id UUID PRIMARY KEY,
    total_members INTEGER NOT NULL DEFAULT 0,
    active_members INTEGER NOT NULL DEFAULT 0,
    avg_completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_points DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_streak DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_checkins INTEGER NOT NULL DEFAULT 0,
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration002Down = `
DROP TABLE IF EXISTS challenge_summaries;
DROP TABLE IF EXISTS habit_aggregates;
DROP TABLE IF EXISTS member_stats;
`
