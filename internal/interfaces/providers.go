package interfaces

import "context"

// SearchResult is one URL discovered by a search call.
type SearchResult struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// SearchProvider executes one search query against an external search
// service. Implementations may fail or return zero results; callers must
// not assume determinism across calls.
type SearchProvider interface {
	Search(ctx context.Context, query string, pages int) ([]SearchResult, error)
}

// ScrapeResult is the cleaned content of one fetched page.
type ScrapeResult struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"` // Markdown
}

// ScrapeProvider fetches and cleans page content for a single URL.
// Failures are per-URL; latency is variable, so implementations must
// honor context deadlines.
type ScrapeProvider interface {
	Fetch(ctx context.Context, url string) (*ScrapeResult, error)
}

// LLMService generates a completion for a prompt. Used by the extraction
// pass and the three analysis passes; failures are whole-call failures
// with no partial output contract.
type LLMService interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Close() error
}
