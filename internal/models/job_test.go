package models

import (
	"testing"
)

// TestCanTransition verifies the phase ordering rules
func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{name: "pending starts serp", from: JobStatusPending, to: JobStatusSerpRunning, allowed: true},
		{name: "serp finishes", from: JobStatusSerpRunning, to: JobStatusSerpDone, allowed: true},
		{name: "serp with no urls", from: JobStatusSerpRunning, to: JobStatusNoResults, allowed: true},
		{name: "serp cannot skip to scraping", from: JobStatusSerpRunning, to: JobStatusScraping, allowed: false},
		{name: "scrape phase entry", from: JobStatusSerpDone, to: JobStatusScraping, allowed: true},
		{name: "scrape finishes", from: JobStatusScraping, to: JobStatusScrapeDone, allowed: true},
		{name: "url retry re-enters scraping", from: JobStatusScrapeDone, to: JobStatusScraping, allowed: true},
		{name: "extraction entry", from: JobStatusScrapeDone, to: JobStatusExtracting, allowed: true},
		{name: "analysis chain 1", from: JobStatusExtractDone, to: JobStatusAnalyzing1, allowed: true},
		{name: "analysis chain 2", from: JobStatusAnalyzing1, to: JobStatusAnalyzing2, allowed: true},
		{name: "analysis chain 3", from: JobStatusAnalyzing2, to: JobStatusAnalyzing3, allowed: true},
		{name: "completion", from: JobStatusAnalyzing3, to: JobStatusCompleted, allowed: true},
		{name: "no backwards to pending", from: JobStatusScraping, to: JobStatusPending, allowed: false},
		{name: "no skipping analysis", from: JobStatusExtractDone, to: JobStatusCompleted, allowed: false},
		{name: "any live state may fail", from: JobStatusAnalyzing2, to: JobStatusFailed, allowed: true},
		{name: "pending may fail", from: JobStatusPending, to: JobStatusFailed, allowed: true},
		{name: "completed cannot fail", from: JobStatusCompleted, to: JobStatusFailed, allowed: false},
		{name: "no results cannot fail", from: JobStatusNoResults, to: JobStatusFailed, allowed: false},
		{name: "any live state may cancel", from: JobStatusExtracting, to: JobStatusCancelled, allowed: true},
		{name: "failed resumes into phase", from: JobStatusFailed, to: JobStatusExtracting, allowed: true},
		{name: "failed cannot restart from pending", from: JobStatusFailed, to: JobStatusPending, allowed: false},
		{name: "failed cannot jump to completed", from: JobStatusFailed, to: JobStatusCompleted, allowed: false},
		{name: "self transition rejected", from: JobStatusScraping, to: JobStatusScraping, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

// TestJobFail verifies the failure marker preserves the active phase
func TestJobFail(t *testing.T) {
	job := &Job{Status: JobStatusScraping}

	if err := job.Fail("scrape provider unreachable"); err != nil {
		t.Fatalf("Fail() returned error: %v", err)
	}
	if job.Status != JobStatusFailed {
		t.Errorf("Status = %s, want failed", job.Status)
	}
	if job.FailedPhase != JobStatusScraping {
		t.Errorf("FailedPhase = %s, want scraping", job.FailedPhase)
	}
	if job.ActivePhase() != JobStatusScraping {
		t.Errorf("ActivePhase() = %s, want scraping", job.ActivePhase())
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt not set on failure")
	}

	// Failing a terminal job is rejected
	done := &Job{Status: JobStatusCompleted}
	if err := done.Fail("too late"); err == nil {
		t.Error("expected error failing a completed job")
	}
}

// TestJobConfigNormalize verifies trimming, dedup, and defaults
func TestJobConfigNormalize(t *testing.T) {
	config := JobConfig{
		LifeContexts: []string{" new parents ", "new parents", "", "remote workers"},
		ProductWords: []string{"tracker", "Tracker"},
		Indicators:   []string{"frustrated", "frustrated"},
		Sources: SourceConfig{
			WebForums:    true,
			ForumDomains: []string{"example.org", "example.org"},
		},
	}
	config.Normalize()

	if len(config.LifeContexts) != 2 {
		t.Errorf("LifeContexts = %v, want 2 entries", config.LifeContexts)
	}
	if len(config.ProductWords) != 1 {
		t.Errorf("ProductWords = %v, want 1 entry (case-insensitive dedup)", config.ProductWords)
	}
	if len(config.Indicators) != 1 {
		t.Errorf("Indicators = %v, want 1 entry", config.Indicators)
	}
	if len(config.Sources.ForumDomains) != 1 {
		t.Errorf("ForumDomains = %v, want 1 entry", config.Sources.ForumDomains)
	}
	if config.SerpPages != 1 {
		t.Errorf("SerpPages = %d, want default 1", config.SerpPages)
	}
	if config.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want default 10", config.BatchSize)
	}
}

// TestSourceConfigCount verifies source slot counting
func TestSourceConfigCount(t *testing.T) {
	tests := []struct {
		name    string
		sources SourceConfig
		want    int
	}{
		{name: "none enabled", sources: SourceConfig{}, want: 0},
		{name: "web only", sources: SourceConfig{WebForums: true}, want: 1},
		{name: "web and reddit", sources: SourceConfig{WebForums: true, Reddit: true}, want: 2},
		{
			name:    "all plus two forums",
			sources: SourceConfig{WebForums: true, Reddit: true, ForumDomains: []string{"a.com", "b.com"}},
			want:    4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sources.Count(); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestNicheFinal verifies the reportable set predicate
func TestNicheFinal(t *testing.T) {
	if !(&Niche{}).Final() {
		t.Error("fresh niche should be final")
	}
	if (&Niche{FilteredOut: true}).Final() {
		t.Error("filtered niche should not be final")
	}
	if (&Niche{MergedInto: "niche_abc"}).Final() {
		t.Error("merged niche should not be final")
	}
}

// TestCombinationNextQuery verifies resume position tracking
func TestCombinationNextQuery(t *testing.T) {
	combo := &Combination{
		Queries: []Query{
			{Text: "first"},
			{Text: "second"},
		},
	}

	if q := combo.NextQuery(); q == nil || q.Text != "first" {
		t.Fatalf("NextQuery() = %v, want first", q)
	}
	combo.QueriesCompleted = 1
	if q := combo.NextQuery(); q == nil || q.Text != "second" {
		t.Fatalf("NextQuery() = %v, want second", q)
	}
	combo.QueriesCompleted = 2
	if q := combo.NextQuery(); q != nil {
		t.Fatalf("NextQuery() = %v, want nil when exhausted", q)
	}
}
