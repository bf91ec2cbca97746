package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/models"
)

// liveStatuses are the states the runner drives and the sweep inspects.
var liveStatuses = []models.JobStatus{
	models.JobStatusPending,
	models.JobStatusSerpRunning,
	models.JobStatusSerpDone,
	models.JobStatusScraping,
	models.JobStatusScrapeDone,
	models.JobStatusExtracting,
	models.JobStatusExtractDone,
	models.JobStatusAnalyzing1,
	models.JobStatusAnalyzing2,
	models.JobStatusAnalyzing3,
}

// Runner drives live jobs to completion server-side: one goroutine per
// job calling Advance in a loop. The pipeline stays correct without it
// (clients can poll Advance themselves); the runner just removes the
// need to. A cron sweep re-adopts jobs whose driver goroutine died.
type Runner struct {
	coordinator *Coordinator
	config      *common.PipelineConfig
	logger      arbor.ILogger
	interval    time.Duration
	staleAfter  time.Duration
	cron        *cron.Cron

	mu      sync.Mutex
	driving map[string]bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner over the coordinator.
func NewRunner(coordinator *Coordinator, config *common.PipelineConfig, logger arbor.ILogger) *Runner {
	return &Runner{
		coordinator: coordinator,
		config:      config,
		logger:      logger,
		interval:    common.MustDuration(config.AdvanceInterval),
		staleAfter:  common.MustDuration(config.StaleAfter),
		driving:     make(map[string]bool),
	}
}

// Start adopts all live jobs found in storage and schedules the stale-job
// sweep. Jobs interrupted by a process restart resume from their last
// checkpoint because Advance reads all position from storage.
func (r *Runner) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.adoptLiveJobs(r.ctx); err != nil {
		return err
	}

	r.cron = cron.New()
	schedule := r.config.SweepSchedule
	if schedule == "" {
		schedule = "@every 5m"
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.sweep(r.ctx) }); err != nil {
		return err
	}
	r.cron.Start()

	r.logger.Info().
		Str("advance_interval", r.interval.String()).
		Str("sweep_schedule", schedule).
		Msg("Pipeline runner started")
	return nil
}

// Stop halts the sweep and waits for in-flight units of work to finish.
// Jobs stay resumable: the next Start picks them up where they stopped.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.cron != nil {
		cronCtx := r.cron.Stop()
		<-cronCtx.Done()
	}
	r.wg.Wait()
	r.logger.Info().Msg("Pipeline runner stopped")
}

// Drive starts a background loop for one job if none is running. Called
// after job creation and resume so new work begins without waiting for
// the sweep.
func (r *Runner) Drive(jobID string) {
	r.mu.Lock()
	if r.driving[jobID] {
		r.mu.Unlock()
		return
	}
	r.driving[jobID] = true
	r.mu.Unlock()

	r.wg.Add(1)
	common.SafeGo(r.logger, "job-driver-"+jobID, func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.driving, jobID)
			r.mu.Unlock()
		}()
		r.drive(r.ctx, jobID)
	})
}

// drive advances one job until it reaches a non-live state or the runner
// shuts down.
func (r *Runner) drive(ctx context.Context, jobID string) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		snapshot, err := r.coordinator.Advance(ctx, jobID)
		if err != nil {
			r.logger.Error().Str("job_id", jobID).Err(err).Msg("Advance failed, driver stopping")
			return
		}
		if !snapshot.Job.Status.IsLive() {
			r.logger.Info().
				Str("job_id", jobID).
				Str("status", string(snapshot.Job.Status)).
				Msg("Job left live state, driver stopping")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// adoptLiveJobs restarts drivers for every live job found in storage.
func (r *Runner) adoptLiveJobs(ctx context.Context) error {
	jobs, err := r.coordinator.storage.JobStorage().GetJobsByStatuses(ctx, liveStatuses...)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		r.logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("Adopting live job")
		r.Drive(job.ID)
	}
	return nil
}

// sweep finds live jobs with no recent progress and restarts their
// drivers. A job being actively driven is skipped by Drive's dedup.
func (r *Runner) sweep(ctx context.Context) {
	jobs, err := r.coordinator.storage.JobStorage().GetJobsByStatuses(ctx, liveStatuses...)
	if err != nil {
		r.logger.Error().Err(err).Msg("Stale-job sweep failed")
		return
	}

	cutoff := time.Now().Add(-r.staleAfter)
	for _, job := range jobs {
		last := job.CreatedAt
		if job.LastAdvance != nil {
			last = *job.LastAdvance
		}
		if last.After(cutoff) {
			continue
		}
		r.logger.Warn().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Str("last_advance", last.Format(time.RFC3339)).
			Msg("Stale job detected, restarting driver")
		r.Drive(job.ID)
	}
}
