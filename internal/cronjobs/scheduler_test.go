package cronjobs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	mu    sync.Mutex
	runs  int
	name  string
	err   error
}

func (j *countingJob) Run() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) runCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestScheduler_AddJob_RunsOnSchedule(t *testing.T) {
	sched := New(zerolog.Nop())
	job := &countingJob{name: "every_second"}

	require.NoError(t, sched.AddJob("* * * * * *", job))
	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return job.runCount() >= 1
	}, 3*time.Second, 50*time.Millisecond, "job should run at least once within three seconds")
}

func TestScheduler_AddJob_RejectsInvalidSchedule(t *testing.T) {
	sched := New(zerolog.Nop())
	job := &countingJob{name: "bad"}

	err := sched.AddJob("not a cron expression", job)
	assert.Error(t, err)
}

func TestScheduler_JobFailureDoesNotStopScheduler(t *testing.T) {
	sched := New(zerolog.Nop())
	job := &countingJob{name: "always_fails", err: errors.New("boom")}

	require.NoError(t, sched.AddJob("* * * * * *", job))
	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return job.runCount() >= 2
	}, 4*time.Second, 50*time.Millisecond, "a failing job must keep being rescheduled, not halt the cron loop")
}
