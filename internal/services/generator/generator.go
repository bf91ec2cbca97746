// Package generator expands a job configuration into the ordered set of
// search queries, grouped by (life context x product word) combination.
// Generation is pure: same config, same ordered output, which is what
// makes SERP resume deterministic.
package generator

import (
	"fmt"

	"github.com/ternarybob/nichefinder/internal/models"
)

// Generate returns the combinations for a job config with their queries
// populated, in execution order: contexts outer loop, product words inner;
// within a pair one base query per enabled source, followed by one query
// per indicator per source.
func Generate(jobID string, config models.JobConfig) []*models.Combination {
	combos := make([]*models.Combination, 0, len(config.LifeContexts)*len(config.ProductWords))

	index := 0
	for _, context := range config.LifeContexts {
		for _, word := range config.ProductWords {
			combo := &models.Combination{
				ID:          models.CombinationID(jobID, index),
				JobID:       jobID,
				Index:       index,
				LifeContext: context,
				ProductWord: word,
				Status:      models.CombinationStatusPending,
				Queries:     buildQueries(context, word, config),
			}
			combos = append(combos, combo)
			index++
		}
	}
	return combos
}

// buildQueries emits the per-source queries for one combination. The base
// query always comes first for a source; indicator queries are additive,
// never replacements.
func buildQueries(context, word string, config models.JobConfig) []models.Query {
	queries := make([]models.Query, 0, config.Sources.Count()*(1+len(config.Indicators)))

	emit := func(sourceType models.SourceType, domain string) {
		queries = append(queries, newQuery(context, word, "", sourceType, domain))
		for _, indicator := range config.Indicators {
			queries = append(queries, newQuery(context, word, indicator, sourceType, domain))
		}
	}

	if config.Sources.WebForums {
		emit(models.SourceTypeWeb, "")
	}
	if config.Sources.Reddit {
		emit(models.SourceTypeReddit, "")
	}
	for _, domain := range config.Sources.ForumDomains {
		emit(models.SourceTypeForum, domain)
	}
	return queries
}

func newQuery(context, word, indicator string, sourceType models.SourceType, domain string) models.Query {
	return models.Query{
		Text:         queryText(context, word, indicator, sourceType, domain),
		LifeContext:  context,
		ProductWord:  word,
		SourceType:   sourceType,
		SourceDomain: domain,
		Indicator:    indicator,
	}
}

// queryText builds the search text by deterministic templating. The
// operator syntax here targets generic web search; the provider adapter
// is free to translate further.
func queryText(context, word, indicator string, sourceType models.SourceType, domain string) string {
	base := fmt.Sprintf("%s %s", context, word)
	if indicator != "" {
		base = fmt.Sprintf("%s %q", base, indicator)
	}
	switch sourceType {
	case models.SourceTypeReddit:
		return base + " site:reddit.com"
	case models.SourceTypeForum:
		return fmt.Sprintf("%s site:%s", base, domain)
	default:
		return base + " forum"
	}
}

// QueryCount computes the total query count in O(1), without generating
// the list. Must stay consistent with Generate: the count identity
// |Generate| == combinations x sources x (1 + |indicators|) is tested
// explicitly.
func QueryCount(config models.JobConfig) int {
	combinations := len(config.LifeContexts) * len(config.ProductWords)
	return combinations * config.Sources.Count() * (1 + len(config.Indicators))
}
