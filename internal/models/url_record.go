package models

import "time"

// URLStatus represents the scrape state of a discovered URL.
type URLStatus string

const (
	URLStatusPending URLStatus = "pending"
	URLStatusScraped URLStatus = "scraped"
	URLStatusFailed  URLStatus = "failed"
)

// URLRecord is one discovered URL awaiting or having undergone scraping.
// Created by the SERP executor (deduplicated by URL string within a job),
// mutated only by the scrape executor, read-only afterwards.
type URLRecord struct {
	ID     string    `json:"id"` // jobID + "|" + url, enforces per-job dedup
	JobID  string    `json:"job_id" badgerhold:"index"`
	URL    string    `json:"url"`
	Status URLStatus `json:"status" badgerhold:"index"`
	Title  string    `json:"title,omitempty"`
	// Content holds the scraped page converted to markdown. Empty until
	// the record reaches scraped status.
	Content           string     `json:"content,omitempty"`
	Error             string     `json:"error,omitempty"`
	DiscoveredByQuery string     `json:"discovered_by_query"`
	DiscoveredAt      time.Time  `json:"discovered_at"`
	ScrapedAt         *time.Time `json:"scraped_at,omitempty"`
}

// URLRecordID builds the dedup storage key for a URL within a job.
func URLRecordID(jobID, url string) string {
	return jobID + "|" + url
}

// URLCounts is the derived per-status breakdown exposed by the poll
// contract alongside the job snapshot.
type URLCounts struct {
	Pending int `json:"pending"`
	Scraped int `json:"scraped"`
	Failed  int `json:"failed"`
}

// Total returns the number of URL records behind these counts.
func (c URLCounts) Total() int {
	return c.Pending + c.Scraped + c.Failed
}
