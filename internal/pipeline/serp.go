package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/models"
)

// runSerpStep executes exactly one search query for the first runnable
// combination, or finalizes the SERP phase when every combination is
// done. Failure of a query marks its whole combination errored; remaining
// combinations keep running.
func (c *Coordinator) runSerpStep(ctx context.Context, job *models.Job) (*models.Job, error) {
	combos, err := c.storage.CombinationStorage().ListCombinations(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list combinations: %w", err)
	}

	var combo *models.Combination
	for _, candidate := range combos {
		if !candidate.Done() {
			combo = candidate
			break
		}
	}
	if combo == nil {
		return c.finalizeSerp(ctx, job)
	}

	if combo.Status == models.CombinationStatusPending {
		combo.Status = models.CombinationStatusRunning
		if err := c.storage.CombinationStorage().UpdateCombination(ctx, combo); err != nil {
			return nil, fmt.Errorf("failed to start combination: %w", err)
		}
	}

	query := combo.NextQuery()
	if query == nil {
		// Exhausted, typically a zero-query combination. Closing it out
		// is this invocation's unit of work.
		combo.Status = models.CombinationStatusCompleted
		if err := c.storage.CombinationStorage().UpdateCombination(ctx, combo); err != nil {
			return nil, fmt.Errorf("failed to complete combination: %w", err)
		}
		return c.storage.JobStorage().Mutate(ctx, job.ID, func(j *models.Job) error {
			touchAdvance(j)
			return nil
		})
	}

	results, searchErr := c.search.Search(ctx, query.Text, job.Config.SerpPages)
	if searchErr != nil {
		// Combination-scoped failure: the completed-query counter is not
		// advanced, so a retry re-issues exactly this query.
		combo.Status = models.CombinationStatusError
		combo.Error = searchErr.Error()
		if err := c.storage.CombinationStorage().UpdateCombination(ctx, combo); err != nil {
			return nil, fmt.Errorf("failed to record combination error: %w", err)
		}
		c.logger.Warn().
			Str("job_id", job.ID).
			Int("combination", combo.Index).
			Str("query", query.Text).
			Err(searchErr).
			Msg("Search query failed, combination marked errored")
		return c.storage.JobStorage().Mutate(ctx, job.ID, func(j *models.Job) error {
			touchAdvance(j)
			return nil
		})
	}

	newURLs := 0
	for _, result := range results {
		normalized := common.NormalizeURL(result.URL)
		rec := &models.URLRecord{
			ID:                models.URLRecordID(job.ID, normalized),
			JobID:             job.ID,
			URL:               normalized,
			Title:             result.Title,
			Status:            models.URLStatusPending,
			DiscoveredByQuery: query.Text,
			DiscoveredAt:      time.Now(),
		}
		inserted, err := c.storage.URLStorage().InsertURL(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to store discovered URL: %w", err)
		}
		if inserted {
			newURLs++
		}
	}

	combo.QueriesCompleted++
	combo.URLsFound += newURLs
	if combo.QueriesCompleted >= len(combo.Queries) {
		combo.Status = models.CombinationStatusCompleted
	}
	if err := c.storage.CombinationStorage().UpdateCombination(ctx, combo); err != nil {
		return nil, fmt.Errorf("failed to checkpoint combination: %w", err)
	}

	job, err = c.storage.JobStorage().Mutate(ctx, job.ID, func(j *models.Job) error {
		j.Counters.SerpCompleted++
		j.Counters.URLsFound += newURLs
		touchAdvance(j)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("job_id", job.ID).
		Int("combination", combo.Index).
		Str("query", query.Text).
		Int("results", len(results)).
		Int("new_urls", newURLs).
		Int("serp_completed", job.Counters.SerpCompleted).
		Msg("Search query executed")

	return job, nil
}

// finalizeSerp closes out the SERP phase once no runnable combination
// remains. The URL store count is taken as the authoritative urls_found
// value. Zero URLs splits two ways: if every query ran cleanly the job
// goes to the no_results terminal (a configuration problem, not an
// error); if any combination errored, the job fails with the SERP phase
// marker so retry-combinations and resume still apply.
func (c *Coordinator) finalizeSerp(ctx context.Context, job *models.Job) (*models.Job, error) {
	counts, err := c.storage.URLStorage().CountURLs(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count discovered URLs: %w", err)
	}

	target := models.JobStatusSerpDone
	if counts.Total() == 0 {
		combos, err := c.storage.CombinationStorage().ListCombinations(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list combinations: %w", err)
		}
		errored := 0
		for _, combo := range combos {
			if combo.Status == models.CombinationStatusError {
				errored++
			}
		}
		if errored > 0 {
			return c.failJob(ctx, job.ID,
				fmt.Errorf("no URLs found and %d of %d combinations failed; retry the failed queries", errored, len(combos)))
		}
		target = models.JobStatusNoResults
	}

	return c.transition(ctx, job.ID, target, func(j *models.Job) {
		j.Counters.URLsFound = counts.Total()
	})
}

// RetryFailedCombinations resets errored combinations to pending and
// re-enters the SERP phase. Jobs still in serp_running are simply reset;
// jobs that failed in the SERP phase move back to serp_running. Anything
// past the SERP phase is rejected.
func (c *Coordinator) RetryFailedCombinations(ctx context.Context, jobID string) (*Snapshot, error) {
	if !c.acquire(jobID) {
		return c.busySnapshot(ctx, jobID)
	}
	defer c.release(jobID)

	job, err := c.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ActivePhase() != models.JobStatusSerpRunning {
		return nil, fmt.Errorf("job %s has no retryable search phase (status %s)", jobID, job.Status)
	}

	reset, err := c.storage.CombinationStorage().ResetErrored(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset combinations: %w", err)
	}

	if job.Status == models.JobStatusFailed {
		job, err = c.storage.JobStorage().Mutate(ctx, jobID, func(j *models.Job) error {
			j.Status = models.JobStatusSerpRunning
			j.FailedPhase = ""
			j.Error = ""
			j.CompletedAt = nil
			touchAdvance(j)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	c.logger.Info().
		Str("job_id", jobID).
		Int("combinations_reset", reset).
		Msg("Errored combinations reset for retry")

	return c.snapshotAndNotify(ctx, job)
}
