package models

import "time"

// Niche is one structured problem record produced by LLM extraction from
// a scraped page. The record itself is immutable after extraction; the
// analysis passes only set the FilteredOut / Score / MergedInto markers.
type Niche struct {
	ID              string   `json:"id"`
	JobID           string   `json:"job_id" badgerhold:"index"`
	SourceURL       string   `json:"source_url"`
	Problem         string   `json:"problem"`
	Persona         string   `json:"persona"`
	FunctionalCause string   `json:"functional_cause,omitempty"`
	EmotionalLoad   string   `json:"emotional_load,omitempty"`
	EvidenceQuotes  []string `json:"evidence_quotes,omitempty"`
	Alternatives    []string `json:"alternatives,omitempty"`

	// FilteredOut is set by the clean/filter pass for low-signal records.
	FilteredOut bool `json:"filtered_out,omitempty"`
	// Score and ScoreRationale are set by the scoring pass.
	Score          float64 `json:"score,omitempty"`
	ScoreRationale string  `json:"score_rationale,omitempty"`
	// MergedInto references the surviving niche ID when the consolidation
	// pass folds this record into a duplicate.
	MergedInto string `json:"merged_into,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Final reports whether the niche belongs to the reportable result set.
func (n *Niche) Final() bool {
	return !n.FilteredOut && n.MergedInto == ""
}
