package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/darezone/darezone-ledger/internal/domain/stats"
	"github.com/darezone/darezone-ledger/internal/infrastructure/service"
)

type fakeRefresher struct {
	calls  []string
	failOn map[string]error
}

func (r *fakeRefresher) Refresh(ctx context.Context, challengeID string) (*stats.Result, error) {
	r.calls = append(r.calls, challengeID)
	if err, ok := r.failOn[challengeID]; ok {
		return nil, err
	}
	return &stats.Result{ChallengeID: challengeID}, nil
}

func TestRefreshStatsJob_SweepsDirtySet(t *testing.T) {
	trigger := service.NewRefreshTrigger()
	trigger.MarkDirty("ch-1")
	trigger.MarkDirty("ch-2")
	trigger.MarkDirty("ch-1")

	refresher := &fakeRefresher{}
	job := NewRefreshStatsJob(trigger, refresher, nil, RefreshStatsConfig{})

	assert.NoError(t, job.Run(context.Background()))
	assert.Len(t, refresher.calls, 2)
	assert.Equal(t, 0, trigger.Len())
}

func TestRefreshStatsJob_EmptySetIsNoop(t *testing.T) {
	trigger := service.NewRefreshTrigger()
	refresher := &fakeRefresher{}
	job := NewRefreshStatsJob(trigger, refresher, nil, RefreshStatsConfig{})

	assert.NoError(t, job.Run(context.Background()))
	assert.Empty(t, refresher.calls)
}

func TestRefreshStatsJob_FailedChallengeRequeued(t *testing.T) {
	trigger := service.NewRefreshTrigger()
	trigger.MarkDirty("ch-ok")
	trigger.MarkDirty("ch-bad")

	refresher := &fakeRefresher{failOn: map[string]error{
		"ch-bad": errors.New("store down"),
	}}
	job := NewRefreshStatsJob(trigger, refresher, nil, RefreshStatsConfig{})

	err := job.Run(context.Background())
	assert.Error(t, err)

	// The failed challenge is dirty again; the healthy one is not.
	dirty := trigger.Drain()
	assert.Equal(t, []string{"ch-bad"}, dirty)
}
