package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeJob struct {
	name string
	runs int32
	err  error
}

func (j *fakeJob) Name() string        { return j.name }
func (j *fakeJob) Description() string { return "test job" }
func (j *fakeJob) Run(ctx context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := New(Config{})

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&fakeJob{name: "a"}, nil), ErrNilSchedule)

	assert.NoError(t, s.Register(&fakeJob{name: "a"}, NewIntervalSchedule(time.Second)))
	assert.ErrorIs(t, s.Register(&fakeJob{name: "a"}, NewIntervalSchedule(time.Second)), ErrJobAlreadyExists)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(Config{})

	assert.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(Config{})
	job := &fakeJob{name: "sweep"}
	assert.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	assert.NoError(t, s.RunNow(context.Background(), "sweep"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
	assert.Equal(t, int64(1), s.Metrics().Executions("sweep"))

	assert.ErrorIs(t, s.RunNow(context.Background(), "missing"), ErrJobNotFound)
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s := New(Config{})
	job := &fakeJob{name: "broken", err: errors.New("boom")}
	assert.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	assert.Error(t, s.RunNow(context.Background(), "broken"))
	assert.Equal(t, int64(1), s.Metrics().TotalFailures)
}

func TestIntervalSchedule_Next(t *testing.T) {
	sch := NewIntervalSchedule(5 * time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(5*time.Minute), sch.Next(now))
	assert.Equal(t, "@every 5m0s", sch.String())
}

func TestDailySchedule_Next(t *testing.T) {
	sch := NewDailySchedule(3, 30)

	before := time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 1, 3, 30, 0, 0, time.UTC), sch.Next(before))

	after := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 2, 3, 30, 0, 0, time.UTC), sch.Next(after))

	exact := time.Date(2025, 3, 1, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 2, 3, 30, 0, 0, time.UTC), sch.Next(exact))
}
