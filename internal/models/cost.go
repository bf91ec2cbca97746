package models

// CostEstimate projects the monetary cost of a run across the three cost
// centers. Derived, never persisted; recomputed authoritatively before a
// job starts.
type CostEstimate struct {
	QueryCount    int     `json:"query_count"`
	ProjectedURLs int     `json:"projected_urls"`
	Serp          float64 `json:"serp"`
	Scrape        float64 `json:"scrape"`
	LLM           float64 `json:"llm"`
	Total         float64 `json:"total"`
}
