package generator

import (
	"reflect"
	"testing"

	"github.com/ternarybob/nichefinder/internal/models"
)

func baseConfig() models.JobConfig {
	return models.JobConfig{
		LifeContexts: []string{"new parents", "remote workers"},
		ProductWords: []string{"sleep tracker", "standing desk"},
		Indicators:   []string{"is there a tool"},
		Sources: models.SourceConfig{
			WebForums: true,
			Reddit:    true,
		},
		SerpPages: 1,
		BatchSize: 10,
	}
}

// TestGenerateDeterministic verifies identical configs yield identical output
func TestGenerateDeterministic(t *testing.T) {
	a := Generate("job_1", baseConfig())
	b := Generate("job_1", baseConfig())

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			t.Errorf("combination %d differs between runs", i)
		}
	}
}

// TestGenerateCountIdentity verifies |queries| == combos * sources * (1 + indicators)
func TestGenerateCountIdentity(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.JobConfig)
		want   int
	}{
		{
			// 2 contexts x 2 words x 2 sources x (1 base + 1 indicator)
			name:   "two by two with indicator",
			mutate: func(c *models.JobConfig) {},
			want:   16,
		},
		{
			name:   "no indicators",
			mutate: func(c *models.JobConfig) { c.Indicators = nil },
			want:   8,
		},
		{
			name: "forum domains add a source each",
			mutate: func(c *models.JobConfig) {
				c.Indicators = nil
				c.Sources.ForumDomains = []string{"community.example.com"}
			},
			want: 12,
		},
		{
			name:   "no sources means no queries",
			mutate: func(c *models.JobConfig) { c.Sources = models.SourceConfig{} },
			want:   0,
		},
		{
			name:   "no contexts means no combinations",
			mutate: func(c *models.JobConfig) { c.LifeContexts = nil },
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := baseConfig()
			tt.mutate(&config)

			total := 0
			for _, combo := range Generate("job_x", config) {
				total += len(combo.Queries)
			}
			if total != tt.want {
				t.Errorf("generated %d queries, want %d", total, tt.want)
			}
			if got := QueryCount(config); got != tt.want {
				t.Errorf("QueryCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestGenerateOrdering verifies contexts outer, words inner, base before indicators
func TestGenerateOrdering(t *testing.T) {
	combos := Generate("job_1", baseConfig())

	if len(combos) != 4 {
		t.Fatalf("got %d combinations, want 4", len(combos))
	}

	wantPairs := [][2]string{
		{"new parents", "sleep tracker"},
		{"new parents", "standing desk"},
		{"remote workers", "sleep tracker"},
		{"remote workers", "standing desk"},
	}
	for i, combo := range combos {
		if combo.LifeContext != wantPairs[i][0] || combo.ProductWord != wantPairs[i][1] {
			t.Errorf("combination %d = (%s, %s), want (%s, %s)",
				i, combo.LifeContext, combo.ProductWord, wantPairs[i][0], wantPairs[i][1])
		}
		if combo.Index != i {
			t.Errorf("combination %d has Index %d", i, combo.Index)
		}
		if combo.ID != models.CombinationID("job_1", i) {
			t.Errorf("combination %d has ID %s", i, combo.ID)
		}
	}

	// Per source: base query first, then indicator variants
	queries := combos[0].Queries
	if queries[0].Indicator != "" {
		t.Errorf("first query has indicator %q, want base query first", queries[0].Indicator)
	}
	if queries[1].Indicator == "" {
		t.Error("second query should be the indicator variant")
	}
}

// TestQueryText verifies source operator templating
func TestQueryText(t *testing.T) {
	tests := []struct {
		name       string
		sourceType models.SourceType
		domain     string
		indicator  string
		want       string
	}{
		{
			name:       "web gets forum keyword",
			sourceType: models.SourceTypeWeb,
			want:       "new parents sleep tracker forum",
		},
		{
			name:       "reddit gets site operator",
			sourceType: models.SourceTypeReddit,
			want:       "new parents sleep tracker site:reddit.com",
		},
		{
			name:       "forum domain gets site operator",
			sourceType: models.SourceTypeForum,
			domain:     "community.example.com",
			want:       "new parents sleep tracker site:community.example.com",
		},
		{
			name:       "indicator is quoted",
			sourceType: models.SourceTypeWeb,
			indicator:  "is there a tool",
			want:       `new parents sleep tracker "is there a tool" forum`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queryText("new parents", "sleep tracker", tt.indicator, tt.sourceType, tt.domain)
			if got != tt.want {
				t.Errorf("queryText() = %q, want %q", got, tt.want)
			}
		})
	}
}
