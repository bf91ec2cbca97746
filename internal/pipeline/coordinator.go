// Package pipeline implements the niche-finder job state machine: the
// coordinator that sequences the SERP, scrape, and analysis executors,
// one bounded unit of work per invocation, checkpointed in storage
// between any two units.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/interfaces"
	"github.com/ternarybob/nichefinder/internal/models"
	"github.com/ternarybob/nichefinder/internal/services/generator"
)

// Notifier receives a snapshot after every completed unit of work.
// Optional; used for the WebSocket progress push.
type Notifier func(snapshot *Snapshot)

// Coordinator drives jobs through the pipeline phases. All mutation goes
// through Advance and the explicitly named step/retry operations, each of
// which is single-flight per job: a second caller hitting a busy job gets
// the current snapshot back instead of a second executor.
type Coordinator struct {
	storage interfaces.StorageManager
	search  interfaces.SearchProvider
	scraper interfaces.ScrapeProvider
	llm     interfaces.LLMService
	config  *common.PipelineConfig
	logger  arbor.ILogger
	notify  Notifier

	mu       sync.Mutex
	inflight map[string]bool
}

// NewCoordinator creates a coordinator over the given providers.
func NewCoordinator(
	storage interfaces.StorageManager,
	search interfaces.SearchProvider,
	scraper interfaces.ScrapeProvider,
	llm interfaces.LLMService,
	config *common.PipelineConfig,
	logger arbor.ILogger,
) *Coordinator {
	return &Coordinator{
		storage:  storage,
		search:   search,
		scraper:  scraper,
		llm:      llm,
		config:   config,
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// SetNotifier registers the snapshot push callback.
func (c *Coordinator) SetNotifier(notify Notifier) {
	c.notify = notify
}

// acquire takes the single-flight lock for a job. Returns false when
// another invocation is already executing a unit of work for it.
func (c *Coordinator) acquire(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[jobID] {
		return false
	}
	c.inflight[jobID] = true
	return true
}

func (c *Coordinator) release(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, jobID)
}

// CreateJob validates and snapshots the configuration, seeds the
// combination records, and stores the job in pending state. It does not
// execute any work; the first Advance call does.
func (c *Coordinator) CreateJob(ctx context.Context, config models.JobConfig, projectID string) (*Snapshot, error) {
	config.Normalize()
	if len(config.LifeContexts) == 0 || len(config.ProductWords) == 0 {
		return nil, fmt.Errorf("at least one life context and one product word are required")
	}
	if config.Sources.Count() == 0 {
		return nil, fmt.Errorf("at least one search source must be enabled")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = c.config.DefaultBatchSize
	}

	job := &models.Job{
		ID:        common.NewJobID(),
		ProjectID: projectID,
		Config:    config,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
	}

	combos := generator.Generate(job.ID, config)
	job.Counters.SerpTotal = generator.QueryCount(config)

	if err := c.storage.CombinationStorage().SaveCombinations(ctx, combos); err != nil {
		return nil, fmt.Errorf("failed to seed combinations: %w", err)
	}
	if err := c.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	c.logger.Info().
		Str("job_id", job.ID).
		Int("combinations", len(combos)).
		Int("serp_total", job.Counters.SerpTotal).
		Msg("Job created")

	return c.buildSnapshot(ctx, job)
}

// GetSnapshot returns the poll view of a job without doing any work.
func (c *Coordinator) GetSnapshot(ctx context.Context, jobID string) (*Snapshot, error) {
	job, err := c.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return c.buildSnapshot(ctx, job)
}

// Advance performs one bounded unit of work for the job: one query, one
// scrape batch, one analysis pass, or one phase transition. Calling it on
// a terminal or failed job is a no-op that returns the current snapshot,
// which is what makes polling-driven resume safe across reloads.
func (c *Coordinator) Advance(ctx context.Context, jobID string) (*Snapshot, error) {
	if !c.acquire(jobID) {
		return c.busySnapshot(ctx, jobID)
	}
	defer c.release(jobID)

	job, err := c.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.JobStatusPending:
		job, err = c.startJob(ctx, job)
	case models.JobStatusSerpRunning:
		job, err = c.runSerpStep(ctx, job)
	case models.JobStatusSerpDone:
		job, err = c.enterPhase(ctx, job, models.JobStatusScraping)
	case models.JobStatusScraping:
		job, err = c.runScrapeBatch(ctx, job)
	case models.JobStatusScrapeDone:
		job, err = c.enterPhase(ctx, job, models.JobStatusExtracting)
	case models.JobStatusExtracting:
		job, err = c.runExtractPass(ctx, job)
	case models.JobStatusExtractDone:
		job, err = c.enterPhase(ctx, job, models.JobStatusAnalyzing1)
	case models.JobStatusAnalyzing1:
		job, err = c.runFilterPass(ctx, job)
	case models.JobStatusAnalyzing2:
		job, err = c.runScorePass(ctx, job)
	case models.JobStatusAnalyzing3:
		job, err = c.runConsolidatePass(ctx, job)
	default:
		// Terminal, failed, or cancelled: nothing to do.
	}
	if err != nil {
		return nil, err
	}
	return c.snapshotAndNotify(ctx, job)
}

// startJob moves pending -> serp_running.
func (c *Coordinator) startJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	return c.transition(ctx, job.ID, models.JobStatusSerpRunning, func(j *models.Job) {
		now := time.Now()
		j.StartedAt = &now
	})
}

// enterPhase performs a pure status transition as its own unit of work.
func (c *Coordinator) enterPhase(ctx context.Context, job *models.Job, to models.JobStatus) (*models.Job, error) {
	return c.transition(ctx, job.ID, to, nil)
}

// transition applies a table-validated status change under the job lock.
func (c *Coordinator) transition(ctx context.Context, jobID string, to models.JobStatus, mutate func(*models.Job)) (*models.Job, error) {
	job, err := c.storage.JobStorage().Mutate(ctx, jobID, func(j *models.Job) error {
		if !models.CanTransition(j.Status, to) {
			return fmt.Errorf("invalid transition %s -> %s", j.Status, to)
		}
		j.Status = to
		now := time.Now()
		j.LastAdvance = &now
		if to.IsTerminal() {
			j.CompletedAt = &now
		}
		if mutate != nil {
			mutate(j)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("job_id", jobID).Str("status", string(to)).Msg("Job phase transition")
	return job, nil
}

// failJob records a phase-level failure, preserving the phase marker so
// resume can re-enter it.
func (c *Coordinator) failJob(ctx context.Context, jobID string, cause error) (*models.Job, error) {
	job, err := c.storage.JobStorage().Mutate(ctx, jobID, func(j *models.Job) error {
		return j.Fail(cause.Error())
	})
	if err != nil {
		return nil, err
	}
	c.logger.Error().
		Str("job_id", jobID).
		Str("phase", string(job.FailedPhase)).
		Str("error", job.Error).
		Msg("Job failed")
	return job, nil
}

// Resume re-enters the phase that failed. It is the only path out of
// the failed status and never restarts from pending.
func (c *Coordinator) Resume(ctx context.Context, jobID string) (*Snapshot, error) {
	if !c.acquire(jobID) {
		return c.busySnapshot(ctx, jobID)
	}
	defer c.release(jobID)

	job, err := c.storage.JobStorage().Mutate(ctx, jobID, func(j *models.Job) error {
		if j.Status != models.JobStatusFailed {
			return fmt.Errorf("job %s is not failed (status %s)", jobID, j.Status)
		}
		phase := j.FailedPhase
		if phase == "" || !models.CanTransition(j.Status, phase) {
			return fmt.Errorf("job %s has no resumable phase", jobID)
		}
		j.Status = phase
		j.FailedPhase = ""
		j.Error = ""
		j.CompletedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("Job resumed")
	return c.snapshotAndNotify(ctx, job)
}

// Abort moves a live job to the cancelled terminal state for UI clarity.
// Simply ceasing to poll has the same effect on the work itself. Takes
// the single-flight lock so it cannot interleave with a unit of work
// cancelling the job out from under it.
func (c *Coordinator) Abort(ctx context.Context, jobID string) (*Snapshot, error) {
	if !c.acquire(jobID) {
		return c.busySnapshot(ctx, jobID)
	}
	defer c.release(jobID)

	job, err := c.storage.JobStorage().Mutate(ctx, jobID, func(j *models.Job) error {
		if !models.CanTransition(j.Status, models.JobStatusCancelled) {
			return fmt.Errorf("cannot abort job in status %s", j.Status)
		}
		j.Status = models.JobStatusCancelled
		now := time.Now()
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("job_id", jobID).Msg("Job aborted")
	return c.snapshotAndNotify(ctx, job)
}

// busySnapshot is returned when the single-flight lock is held: a
// consistent read of the current state, flagged busy.
func (c *Coordinator) busySnapshot(ctx context.Context, jobID string) (*Snapshot, error) {
	snapshot, err := c.GetSnapshot(ctx, jobID)
	if err != nil {
		return nil, err
	}
	snapshot.Busy = true
	return snapshot, nil
}

func (c *Coordinator) snapshotAndNotify(ctx context.Context, job *models.Job) (*Snapshot, error) {
	snapshot, err := c.buildSnapshot(ctx, job)
	if err != nil {
		return nil, err
	}
	if c.notify != nil {
		c.notify(snapshot)
	}
	return snapshot, nil
}

// touchAdvance records progress for the stale-job sweep.
func touchAdvance(j *models.Job) {
	now := time.Now()
	j.LastAdvance = &now
}
