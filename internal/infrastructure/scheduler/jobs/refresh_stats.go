// Package jobs contains the ledger's scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/darezone/darezone-ledger/internal/domain/stats"
)

// DirtySource hands out the challenges whose aggregates need rebuilding.
type DirtySource interface {
	// Drain returns the dirty challenge IDs and resets the set.
	Drain() []string

	// MarkDirty requeues a challenge for the next sweep.
	MarkDirty(challengeID string)
}

// Refresher rebuilds the aggregates for one challenge.
type Refresher interface {
	Refresh(ctx context.Context, challengeID string) (*stats.Result, error)
}

// RefreshStatsJob sweeps the dirty set and rebuilds aggregates for each
// flagged challenge. A challenge whose rebuild fails goes back into the set,
// so a transient store outage delays its board instead of losing it.
type RefreshStatsJob struct {
	source    DirtySource
	refresher Refresher
	logger    *slog.Logger

	// timeout bounds one whole sweep.
	timeout time.Duration
}

// RefreshStatsConfig tunes the sweep.
type RefreshStatsConfig struct {
	// Timeout is the maximum duration for one sweep (default: 2m).
	Timeout time.Duration
}

// NewRefreshStatsJob creates the sweep job.
func NewRefreshStatsJob(source DirtySource, refresher Refresher, logger *slog.Logger, cfg RefreshStatsConfig) *RefreshStatsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &RefreshStatsJob{
		source:    source,
		refresher: refresher,
		logger:    logger,
		timeout:   cfg.Timeout,
	}
}

// Name returns the job name.
func (j *RefreshStatsJob) Name() string {
	return "refresh_stats"
}

// Description returns a human-readable description.
func (j *RefreshStatsJob) Description() string {
	return "Rebuilds member ranks, habit aggregates and summaries for challenges with recent ledger writes"
}

// Run executes one sweep.
func (j *RefreshStatsJob) Run(ctx context.Context) error {
	challengeIDs := j.source.Drain()
	if len(challengeIDs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	j.logger.Info("refresh sweep started", "challenges", len(challengeIDs))

	failed := 0
	for _, id := range challengeIDs {
		if ctx.Err() != nil {
			// Sweep interrupted; everything not yet rebuilt stays dirty.
			j.source.MarkDirty(id)
			failed++
			continue
		}

		if _, err := j.refresher.Refresh(ctx, id); err != nil {
			j.logger.Error("refresh failed",
				"challenge_id", id,
				"error", err,
			)
			j.source.MarkDirty(id)
			failed++
		}
	}

	j.logger.Info("refresh sweep completed",
		"challenges", len(challengeIDs),
		"failed", failed,
	)

	if failed > 0 {
		return fmt.Errorf("refresh sweep: %d of %d challenges failed", failed, len(challengeIDs))
	}
	return nil
}
