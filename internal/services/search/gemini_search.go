// Package search implements the SearchProvider contract using the Gemini
// SDK with GoogleSearch grounding. The grounding chunks of the response
// carry the discovered URLs; the generated text itself is discarded.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiSearch executes SERP queries via Gemini grounded search.
type GeminiSearch struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// Compile-time assertion: GeminiSearch implements SearchProvider
var _ interfaces.SearchProvider = (*GeminiSearch)(nil)

// NewGeminiSearch creates a Gemini-backed search provider.
func NewGeminiSearch(config *common.SearchConfig, logger arbor.ILogger) (*GeminiSearch, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for search (set GOOGLE_API_KEY or search.api_key in config)")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = "gemini-3-flash-preview"
	}

	ratePerMinute := config.RatePerMinute
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}

	logger.Debug().
		Str("model", model).
		Int("rate_per_minute", ratePerMinute).
		Msg("Gemini search provider initialized")

	return &GeminiSearch{
		client:  client,
		model:   model,
		timeout: common.MustDuration(config.Timeout),
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), 1),
		logger:  logger,
	}, nil
}

// Search issues one grounded search call requesting roughly pages result
// pages worth of sources. Returns the deduplicated source URLs in the
// order the grounding metadata reported them.
func (s *GeminiSearch) Search(ctx context.Context, query string, pages int) ([]interfaces.SearchResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if pages < 1 {
		pages = 1
	}
	prompt := fmt.Sprintf(
		"Search the web for: %s\nReturn the most relevant discussion pages. "+
			"Cover at least %d result pages worth of distinct sources. "+
			"List every source URL you consulted.", query, pages)

	searchTool := &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{searchTool},
	}

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(
		searchCtx,
		s.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		config,
	)
	if err != nil {
		return nil, fmt.Errorf("search call failed: %w", err)
	}

	results := extractSources(resp)

	s.logger.Debug().
		Str("query", query).
		Int("pages", pages).
		Int("results", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Search query executed")

	return results, nil
}

// extractSources pulls source URLs out of the grounding metadata,
// deduplicated by URL.
func extractSources(resp *genai.GenerateContentResponse) []interfaces.SearchResult {
	var results []interfaces.SearchResult
	seen := make(map[string]bool)

	for _, candidate := range resp.Candidates {
		if candidate.GroundingMetadata == nil || candidate.GroundingMetadata.GroundingChunks == nil {
			continue
		}
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			url := strings.TrimSpace(chunk.Web.URI)
			if url == "" || seen[url] {
				continue
			}
			seen[url] = true
			results = append(results, interfaces.SearchResult{
				URL:   url,
				Title: chunk.Web.Title,
			})
		}
	}
	return results
}
