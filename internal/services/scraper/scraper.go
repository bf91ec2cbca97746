// Package scraper implements the ScrapeProvider contract: fetch a page
// over HTTP, strip boilerplate, and convert the remaining document to
// markdown for LLM consumption.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/interfaces"
)

// HTTPScraper fetches page content with a bounded timeout and per-domain
// rate limiting.
type HTTPScraper struct {
	client      *http.Client
	converter   *md.Converter
	rateLimiter *RateLimiter
	userAgent   string
	maxContent  int
	logger      arbor.ILogger
}

// Compile-time assertion: HTTPScraper implements ScrapeProvider
var _ interfaces.ScrapeProvider = (*HTTPScraper)(nil)

// NewHTTPScraper creates a scraper from configuration.
func NewHTTPScraper(config *common.ScraperConfig, logger arbor.ILogger) *HTTPScraper {
	timeout := common.MustDuration(config.Timeout)

	maxContent := config.MaxContentLength
	if maxContent <= 0 {
		maxContent = 60000
	}

	return &HTTPScraper{
		client:      &http.Client{Timeout: timeout},
		converter:   md.NewConverter("", true, nil),
		rateLimiter: NewRateLimiter(config.RequestDelay),
		userAgent:   config.UserAgent,
		maxContent:  maxContent,
		logger:      logger,
	}
}

// Fetch downloads one URL and returns its cleaned markdown content.
func (s *HTTPScraper) Fetch(ctx context.Context, url string) (*interfaces.ScrapeResult, error) {
	if err := s.rateLimiter.Wait(ctx, url); err != nil {
		return nil, err
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") && !strings.Contains(contentType, "text/plain") {
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}

	// Cap the body read; forum pages past this size are boilerplate anyway.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	title, markdown, err := s.process(string(body))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(markdown) == "" {
		return nil, fmt.Errorf("no readable content")
	}
	if len(markdown) > s.maxContent {
		markdown = markdown[:s.maxContent]
	}

	s.logger.Debug().
		Str("url", url).
		Int("content_length", len(markdown)).
		Dur("duration", time.Since(start)).
		Msg("Page scraped")

	return &interfaces.ScrapeResult{
		Title:   title,
		Content: markdown,
	}, nil
}

// process strips non-content markup and converts the remainder to
// markdown.
func (s *HTTPScraper) process(html string) (title, markdown string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, iframe, svg, nav, footer, header, aside, form").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	cleaned, err := goquery.OuterHtml(body)
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize cleaned HTML: %w", err)
	}

	markdown, err = s.converter.ConvertString(cleaned)
	if err != nil {
		return "", "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return title, strings.TrimSpace(markdown), nil
}
