package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the state of a niche-finder job. Statuses move
// strictly forward through the pipeline order; the only escapes are
// "failed" (from any live state), "cancelled" (explicit abort), and
// "no_results" (SERP phase finalized with zero URLs).
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusSerpRunning JobStatus = "serp_running"
	JobStatusSerpDone    JobStatus = "serp_done"
	JobStatusNoResults   JobStatus = "no_results"
	JobStatusScraping    JobStatus = "scraping"
	JobStatusScrapeDone  JobStatus = "scrape_done"
	JobStatusExtracting  JobStatus = "extracting"
	JobStatusExtractDone JobStatus = "extract_done"
	JobStatusAnalyzing1  JobStatus = "analyzing_1"
	JobStatusAnalyzing2  JobStatus = "analyzing_2"
	JobStatusAnalyzing3  JobStatus = "analyzing_3"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// jobTransitions is the forward transition table. Failed and cancelled are
// handled separately: any live state may move to either, and failed may
// re-enter the phase recorded in Job.FailedPhase.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:     {JobStatusSerpRunning},
	JobStatusSerpRunning: {JobStatusSerpDone, JobStatusNoResults},
	JobStatusSerpDone:    {JobStatusScraping},
	JobStatusScraping:    {JobStatusScrapeDone},
	// scrape_done -> scraping is the failed-URL retry re-entering the
	// phase; the only backward edge besides failed-resume.
	JobStatusScrapeDone:  {JobStatusExtracting, JobStatusScraping},
	JobStatusExtracting:  {JobStatusExtractDone},
	JobStatusExtractDone: {JobStatusAnalyzing1},
	JobStatusAnalyzing1:  {JobStatusAnalyzing2},
	JobStatusAnalyzing2:  {JobStatusAnalyzing3},
	JobStatusAnalyzing3:  {JobStatusCompleted},
}

// IsTerminal reports whether no further work can happen in this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusNoResults, JobStatusCancelled:
		return true
	}
	return false
}

// IsLive reports whether the job is in a non-terminal, non-failed state.
func (s JobStatus) IsLive() bool {
	return !s.IsTerminal() && s != JobStatusFailed
}

// IsValid reports whether s is a known job status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusSerpRunning, JobStatusSerpDone, JobStatusNoResults,
		JobStatusScraping, JobStatusScrapeDone, JobStatusExtracting, JobStatusExtractDone,
		JobStatusAnalyzing1, JobStatusAnalyzing2, JobStatusAnalyzing3,
		JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition validates a status change against the transition table.
// Moving to failed or cancelled is allowed from any live state.
func CanTransition(from, to JobStatus) bool {
	if from == to {
		return false
	}
	if to == JobStatusFailed || to == JobStatusCancelled {
		return from.IsLive()
	}
	if from == JobStatusFailed {
		// Resume re-enters the phase that failed, never restarts from pending.
		return to.IsLive() && to != JobStatusPending
	}
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourceConfig selects which search sources a job targets. At least one
// source must be enabled for query generation to produce output.
type SourceConfig struct {
	WebForums    bool     `json:"web_forums"`              // General forum search across the open web
	Reddit       bool     `json:"reddit"`                  // Curated social platform
	ForumDomains []string `json:"forum_domains,omitempty"` // Thematic forum domains, one query each
}

// Count returns how many source slots are enabled.
func (s SourceConfig) Count() int {
	n := 0
	if s.WebForums {
		n++
	}
	if s.Reddit {
		n++
	}
	return n + len(s.ForumDomains)
}

// JobConfig is the immutable snapshot of generator inputs taken at job
// creation time. Jobs never observe later edits to these values, which is
// what makes combination reconstruction deterministic on resume.
type JobConfig struct {
	LifeContexts []string     `json:"life_contexts" validate:"required,min=1,dive,min=1"`
	ProductWords []string     `json:"product_words" validate:"required,min=1,dive,min=1"`
	Indicators   []string     `json:"indicators,omitempty"`
	Sources      SourceConfig `json:"sources"`
	SerpPages    int          `json:"serp_pages" validate:"min=0,max=10"`
	BatchSize    int          `json:"batch_size" validate:"min=0,max=50"`
}

// Normalize trims, deduplicates, and applies defaults in place.
func (c *JobConfig) Normalize() {
	c.LifeContexts = dedupeStrings(c.LifeContexts)
	c.ProductWords = dedupeStrings(c.ProductWords)
	c.Indicators = dedupeStrings(c.Indicators)
	c.Sources.ForumDomains = dedupeStrings(c.Sources.ForumDomains)
	if c.SerpPages <= 0 {
		c.SerpPages = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// JobCounters tracks pipeline progress. Counters are monotonically
// non-decreasing across advance calls; the only operation allowed to lower
// one is the failed-URL retry, which returns URLsFailed to the store's
// actual failed count so scraped+failed never exceeds found.
type JobCounters struct {
	SerpCompleted   int `json:"serp_completed"`
	SerpTotal       int `json:"serp_total"`
	URLsFound       int `json:"urls_found"`
	URLsScraped     int `json:"urls_scraped"`
	URLsFailed      int `json:"urls_failed"`
	URLsFiltered    int `json:"urls_filtered"`
	NichesExtracted int `json:"niches_extracted"`
}

// Job represents one niche-finder pipeline run. Configuration is snapshot
// at creation time; counters and status are mutated exclusively by the
// coordinator's single-flight executor loop.
type Job struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id,omitempty"`
	Config    JobConfig `json:"config"`
	Status    JobStatus `json:"status"`
	// FailedPhase preserves the in-progress phase marker when Status is
	// failed, so the UI can show exactly which phase to retry and resume
	// can re-enter it without restarting from pending.
	FailedPhase JobStatus   `json:"failed_phase,omitempty"`
	Counters    JobCounters `json:"counters"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	// LastAdvance is the timestamp of the last completed unit of work,
	// used by the stale-job sweep to find abandoned runs.
	LastAdvance *time.Time `json:"last_advance,omitempty"`
}

// ActivePhase returns the phase to execute next: the status itself for
// live jobs, the preserved marker for failed ones.
func (j *Job) ActivePhase() JobStatus {
	if j.Status == JobStatusFailed && j.FailedPhase != "" {
		return j.FailedPhase
	}
	return j.Status
}

// Fail moves the job to failed, preserving the current phase marker.
func (j *Job) Fail(reason string) error {
	if !CanTransition(j.Status, JobStatusFailed) {
		return fmt.Errorf("cannot fail job in status %s", j.Status)
	}
	j.FailedPhase = j.Status
	j.Status = JobStatusFailed
	j.Error = reason
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

// ConfigJSON serializes the config snapshot for audit logging.
func (j *Job) ConfigJSON() (string, error) {
	data, err := json.Marshal(j.Config)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
