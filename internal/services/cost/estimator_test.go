package cost

import (
	"math"
	"testing"

	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/models"
)

func testPricing() common.CostConfig {
	return common.CostConfig{
		SerpPerPage:      0.005,
		AvgURLsPerQuery:  6,
		ScrapePerURL:     0.002,
		LLMPerExtraction: 0.01,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// TestEstimate verifies the cost arithmetic against a hand-computed case
func TestEstimate(t *testing.T) {
	config := models.JobConfig{
		LifeContexts: []string{"new parents", "remote workers"},
		ProductWords: []string{"tracker"},
		Sources:      models.SourceConfig{WebForums: true, Reddit: true},
		SerpPages:    2,
	}

	// 2 combos x 2 sources x 1 = 4 queries, 24 projected URLs
	estimate := Estimate(config, testPricing())

	if estimate.QueryCount != 4 {
		t.Errorf("QueryCount = %d, want 4", estimate.QueryCount)
	}
	if estimate.ProjectedURLs != 24 {
		t.Errorf("ProjectedURLs = %d, want 24", estimate.ProjectedURLs)
	}
	if !approxEqual(estimate.Serp, 4*2*0.005) {
		t.Errorf("Serp = %f, want %f", estimate.Serp, 4*2*0.005)
	}
	if !approxEqual(estimate.Scrape, 24*0.002) {
		t.Errorf("Scrape = %f, want %f", estimate.Scrape, 24*0.002)
	}
	if !approxEqual(estimate.LLM, 24*0.01) {
		t.Errorf("LLM = %f, want %f", estimate.LLM, 24*0.01)
	}
	if !approxEqual(estimate.Total, estimate.Serp+estimate.Scrape+estimate.LLM) {
		t.Errorf("Total = %f, want sum of components", estimate.Total)
	}
}

// TestEstimateZeroCombinations verifies empty configs price to zero
func TestEstimateZeroCombinations(t *testing.T) {
	tests := []struct {
		name   string
		config models.JobConfig
	}{
		{name: "no inputs at all", config: models.JobConfig{}},
		{
			name: "contexts but no sources",
			config: models.JobConfig{
				LifeContexts: []string{"new parents"},
				ProductWords: []string{"tracker"},
			},
		},
		{
			name: "sources but no product words",
			config: models.JobConfig{
				LifeContexts: []string{"new parents"},
				Sources:      models.SourceConfig{WebForums: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			estimate := Estimate(tt.config, testPricing())
			if estimate.QueryCount != 0 || estimate.Total != 0 {
				t.Errorf("Estimate = %+v, want zero estimate", estimate)
			}
		})
	}
}
