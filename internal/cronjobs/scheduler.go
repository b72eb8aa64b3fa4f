// Package cronjobs runs the periodic, cron-scheduled side jobs that sit
// alongside the two-tier hot/cold scheduler (C9): the NotArb exporter (C11)
// and the optional S3 archive sink (C12). Adapted near-verbatim from
// _examples/aristath-sentinel/trader-go/internal/scheduler/scheduler.go's
// cron.Cron wrapper and Job{Run() error; Name() string} interface.
package cronjobs

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is anything this scheduler can run on a cron expression.
type Job interface {
	Run() error
	Name() string
}

// Scheduler wraps robfig/cron/v3 with structured logging around each run.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a Scheduler with second-resolution cron expressions enabled.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "cronjobs").Logger(),
	}
}

// Start begins executing registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("cron scheduler started")
}

// Stop waits for any in-flight job runs to finish, then stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("cron scheduler stopped")
}

// AddJob registers job on the given cron schedule (seconds-resolution,
// e.g. "*/30 * * * * *" for every 30s, matching SPEC_FULL.md §4.11's cadence).
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("running job")
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", job.Name()).Msg("job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}
