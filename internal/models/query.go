package models

// SourceType identifies which search source a query targets.
type SourceType string

const (
	SourceTypeWeb    SourceType = "web"    // General forum search across the open web
	SourceTypeReddit SourceType = "reddit" // Curated social platform
	SourceTypeForum  SourceType = "forum"  // A specific thematic forum domain
)

// Query is one atomic search request. Queries are immutable once
// generated and are consumed exactly once by the SERP executor (or zero
// times if resume skips past them).
type Query struct {
	Text         string     `json:"text"`
	LifeContext  string     `json:"life_context"`
	ProductWord  string     `json:"product_word"`
	SourceType   SourceType `json:"source_type"`
	SourceDomain string     `json:"source_domain,omitempty"` // Set for forum queries only
	Indicator    string     `json:"indicator,omitempty"`     // Empty for the base query
}
