package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/nichefinder/internal/models"
)

// The step operations expose individual executors for callers that want
// phase-explicit control instead of the generic Advance. Each validates
// the job is actually in the matching phase, then runs exactly the same
// unit of work Advance would.

// RunOneQuery executes a single SERP query for a job in the SERP phase.
func (c *Coordinator) RunOneQuery(ctx context.Context, jobID string) (*Snapshot, error) {
	return c.runStep(ctx, jobID, models.JobStatusSerpRunning, c.runSerpStep)
}

// FinalizeSerp explicitly closes out the SERP phase: it locks urls_found
// to the store count and routes to serp_done or no_results. Rejected
// while any combination still has runnable queries.
func (c *Coordinator) FinalizeSerp(ctx context.Context, jobID string) (*Snapshot, error) {
	return c.runStep(ctx, jobID, models.JobStatusSerpRunning, func(ctx context.Context, job *models.Job) (*models.Job, error) {
		combos, err := c.storage.CombinationStorage().ListCombinations(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list combinations: %w", err)
		}
		for _, combo := range combos {
			if !combo.Done() {
				return nil, fmt.Errorf("combination %d still has queries to run", combo.Index)
			}
		}
		return c.finalizeSerp(ctx, job)
	})
}

// RunScrapeBatch claims and processes one scrape batch for a job in the
// scrape phase.
func (c *Coordinator) RunScrapeBatch(ctx context.Context, jobID string) (*Snapshot, error) {
	return c.runStep(ctx, jobID, models.JobStatusScraping, c.runScrapeBatch)
}

// RunExtractionPass runs the full extraction pass for a job in the
// extraction phase.
func (c *Coordinator) RunExtractionPass(ctx context.Context, jobID string) (*Snapshot, error) {
	return c.runStep(ctx, jobID, models.JobStatusExtracting, c.runExtractPass)
}

func (c *Coordinator) runStep(
	ctx context.Context,
	jobID string,
	want models.JobStatus,
	step func(context.Context, *models.Job) (*models.Job, error),
) (*Snapshot, error) {
	if !c.acquire(jobID) {
		return c.busySnapshot(ctx, jobID)
	}
	defer c.release(jobID)

	job, err := c.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != want {
		return nil, fmt.Errorf("job %s is in status %s, expected %s", jobID, job.Status, want)
	}

	job, err = step(ctx, job)
	if err != nil {
		return nil, err
	}
	return c.snapshotAndNotify(ctx, job)
}
