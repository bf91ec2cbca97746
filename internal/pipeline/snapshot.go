package pipeline

import (
	"context"

	"github.com/ternarybob/nichefinder/internal/models"
)

// CombinationSummary is the progress view of one combination exposed by
// the poll contract.
type CombinationSummary struct {
	Index            int                      `json:"index"`
	LifeContext      string                   `json:"life_context"`
	ProductWord      string                   `json:"product_word"`
	Status           models.CombinationStatus `json:"status"`
	QueriesTotal     int                      `json:"queries_total"`
	QueriesCompleted int                      `json:"queries_completed"`
	URLsFound        int                      `json:"urls_found"`
	Error            string                   `json:"error,omitempty"`
}

// Snapshot is the poll-friendly view of one job: the job record plus the
// derived URL counts and progress percentage. This is the sole read
// contract the presentation layer needs.
type Snapshot struct {
	Job          *models.Job          `json:"job"`
	URLCounts    models.URLCounts     `json:"url_counts"`
	Combinations []CombinationSummary `json:"combinations,omitempty"`
	Percentage   float64              `json:"percentage"`
	// Busy reports that another invocation currently holds the job's
	// single-flight lock; the returned state is a consistent read, just
	// possibly a step behind.
	Busy bool `json:"busy,omitempty"`
}

// phaseFloor maps each live phase to the progress its start represents.
// SERP and scrape dominate wall-clock time, so they dominate the bar.
var phaseFloor = map[models.JobStatus]float64{
	models.JobStatusPending:     0,
	models.JobStatusSerpRunning: 0,
	models.JobStatusSerpDone:    30,
	models.JobStatusScraping:    30,
	models.JobStatusScrapeDone:  70,
	models.JobStatusExtracting:  70,
	models.JobStatusExtractDone: 85,
	models.JobStatusAnalyzing1:  85,
	models.JobStatusAnalyzing2:  90,
	models.JobStatusAnalyzing3:  95,
}

// percentage maps counters onto a 0-100 progress value. Failed jobs keep
// the percentage of the phase they failed in.
func percentage(job *models.Job, counts models.URLCounts) float64 {
	status := job.ActivePhase()
	switch status {
	case models.JobStatusCompleted, models.JobStatusNoResults, models.JobStatusCancelled:
		return 100
	}

	pct := phaseFloor[status]
	c := job.Counters

	switch status {
	case models.JobStatusSerpRunning:
		if c.SerpTotal > 0 {
			pct += 30 * float64(c.SerpCompleted) / float64(c.SerpTotal)
		}
	case models.JobStatusScraping:
		if total := counts.Total(); total > 0 {
			pct += 40 * float64(counts.Scraped+counts.Failed) / float64(total)
		}
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// buildSnapshot assembles the poll view for a job. Combination summaries
// are included only during the SERP phase, where they drive the
// fine-grained progress display.
func (c *Coordinator) buildSnapshot(ctx context.Context, job *models.Job) (*Snapshot, error) {
	counts, err := c.storage.URLStorage().CountURLs(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Job:        job,
		URLCounts:  counts,
		Percentage: percentage(job, counts),
	}

	phase := job.ActivePhase()
	if phase == models.JobStatusPending || phase == models.JobStatusSerpRunning {
		combos, err := c.storage.CombinationStorage().ListCombinations(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		for _, combo := range combos {
			snapshot.Combinations = append(snapshot.Combinations, CombinationSummary{
				Index:            combo.Index,
				LifeContext:      combo.LifeContext,
				ProductWord:      combo.ProductWord,
				Status:           combo.Status,
				QueriesTotal:     len(combo.Queries),
				QueriesCompleted: combo.QueriesCompleted,
				URLsFound:        combo.URLsFound,
				Error:            combo.Error,
			})
		}
	}
	return snapshot, nil
}
