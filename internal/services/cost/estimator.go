// Package cost projects the monetary cost of a run before it starts.
// Estimation is pure arithmetic over the query count and pricing knobs;
// debouncing against rapid config edits is the caller's concern.
package cost

import (
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/models"
	"github.com/ternarybob/nichefinder/internal/services/generator"
)

// Estimate projects search, scrape, and LLM cost for a config. A config
// with zero combinations (or zero sources) yields a zero estimate, not an
// error; the UI renders that as "nothing to run yet".
func Estimate(config models.JobConfig, pricing common.CostConfig) models.CostEstimate {
	queryCount := generator.QueryCount(config)
	serpPages := config.SerpPages
	if serpPages <= 0 {
		serpPages = 1
	}

	projectedURLs := int(float64(queryCount) * pricing.AvgURLsPerQuery)

	estimate := models.CostEstimate{
		QueryCount:    queryCount,
		ProjectedURLs: projectedURLs,
		Serp:          float64(queryCount) * float64(serpPages) * pricing.SerpPerPage,
		Scrape:        float64(projectedURLs) * pricing.ScrapePerURL,
		LLM:           float64(projectedURLs) * pricing.LLMPerExtraction,
	}
	estimate.Total = estimate.Serp + estimate.Scrape + estimate.LLM
	return estimate
}
