package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/nichefinder/internal/models"
)

// runScrapeBatch claims the oldest pending URLs up to the job's batch
// size and fetches them concurrently. Each URL resolves to scraped or
// failed independently; an empty claim transitions the job out of the
// phase. Claiming only pending records makes a redundant invocation after
// a crash re-process at most one partially attempted batch.
func (c *Coordinator) runScrapeBatch(ctx context.Context, job *models.Job) (*models.Job, error) {
	batch, err := c.storage.URLStorage().ListPending(ctx, job.ID, job.Config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim scrape batch: %w", err)
	}
	if len(batch) == 0 {
		return c.transition(ctx, job.ID, models.JobStatusScrapeDone, nil)
	}

	type outcome struct {
		rec     *models.URLRecord
		scraped bool
	}
	outcomes := make([]outcome, len(batch))

	var wg sync.WaitGroup
	for i, rec := range batch {
		wg.Add(1)
		go func(i int, rec *models.URLRecord) {
			defer wg.Done()
			result, fetchErr := c.scraper.Fetch(ctx, rec.URL)
			now := time.Now()
			if fetchErr != nil {
				rec.Status = models.URLStatusFailed
				rec.Error = fetchErr.Error()
			} else {
				rec.Status = models.URLStatusScraped
				rec.Content = result.Content
				if result.Title != "" {
					rec.Title = result.Title
				}
				rec.ScrapedAt = &now
			}
			outcomes[i] = outcome{rec: rec, scraped: fetchErr == nil}
		}(i, rec)
	}
	wg.Wait()

	scraped, failed := 0, 0
	for _, o := range outcomes {
		if err := c.storage.URLStorage().UpdateURL(ctx, o.rec); err != nil {
			return nil, fmt.Errorf("failed to record scrape outcome: %w", err)
		}
		if o.scraped {
			scraped++
		} else {
			failed++
		}
	}

	job, err = c.storage.JobStorage().Mutate(ctx, job.ID, func(j *models.Job) error {
		j.Counters.URLsScraped += scraped
		j.Counters.URLsFailed += failed
		touchAdvance(j)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("job_id", job.ID).
		Int("batch", len(batch)).
		Int("scraped", scraped).
		Int("failed", failed).
		Int("total_scraped", job.Counters.URLsScraped).
		Msg("Scrape batch completed")

	return job, nil
}

// RetryFailedURLs resets failed URL records to pending and re-enters the
// scrape phase. Valid from scraping, scrape_done, and a job that failed
// while scraping; the failed counter is lowered by the reset count so
// scraped+failed never exceeds found.
func (c *Coordinator) RetryFailedURLs(ctx context.Context, jobID string) (*Snapshot, error) {
	if !c.acquire(jobID) {
		return c.busySnapshot(ctx, jobID)
	}
	defer c.release(jobID)

	job, err := c.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	phase := job.ActivePhase()
	if phase != models.JobStatusScraping && phase != models.JobStatusScrapeDone {
		return nil, fmt.Errorf("job %s has no retryable scrape phase (status %s)", jobID, job.Status)
	}

	reset, err := c.storage.URLStorage().ResetFailed(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset URLs: %w", err)
	}

	job, err = c.storage.JobStorage().Mutate(ctx, jobID, func(j *models.Job) error {
		if j.Status != models.JobStatusScraping {
			if !models.CanTransition(j.Status, models.JobStatusScraping) {
				return fmt.Errorf("cannot re-enter scraping from %s", j.Status)
			}
			j.Status = models.JobStatusScraping
		}
		j.FailedPhase = ""
		j.Error = ""
		j.CompletedAt = nil
		j.Counters.URLsFailed -= reset
		if j.Counters.URLsFailed < 0 {
			j.Counters.URLsFailed = 0
		}
		touchAdvance(j)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("job_id", jobID).
		Int("urls_reset", reset).
		Msg("Failed URLs reset for retry")

	return c.snapshotAndNotify(ctx, job)
}
