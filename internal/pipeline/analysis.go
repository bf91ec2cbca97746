package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/models"
)

const extractSystemPrompt = `You are a market research analyst. You read forum and
discussion page content and extract real user problems suitable for niche product
research. Respond with JSON only, no prose, no code fences.`

const analysisSystemPrompt = `You are a market research analyst reviewing a list of
extracted user problems. Respond with JSON only, no prose, no code fences.`

// extractedNiche mirrors the JSON contract of the extraction prompt.
type extractedNiche struct {
	Found           bool     `json:"found"`
	Problem         string   `json:"problem"`
	Persona         string   `json:"persona"`
	FunctionalCause string   `json:"functional_cause"`
	EmotionalLoad   string   `json:"emotional_load"`
	EvidenceQuotes  []string `json:"evidence_quotes"`
	Alternatives    []string `json:"alternatives"`
}

// runExtractPass runs extraction over every scraped page as one unit of
// work. Per-URL contract is zero-or-one niches: an unparseable or declined
// response skips that URL; a transport or API error fails the whole pass.
// Niche IDs are deterministic per (job, source URL), so a re-run after
// failure upserts instead of duplicating.
func (c *Coordinator) runExtractPass(ctx context.Context, job *models.Job) (*models.Job, error) {
	pages, err := c.storage.URLStorage().ListByStatus(ctx, job.ID, models.URLStatusScraped)
	if err != nil {
		return nil, fmt.Errorf("failed to list scraped pages: %w", err)
	}

	extracted, skipped := 0, 0
	for _, page := range pages {
		prompt := fmt.Sprintf(`Analyze this page content and determine whether it
describes a concrete user problem worth niche product research.

Source URL: %s
Title: %s

Content:
%s

Respond with a single JSON object:
{"found": bool, "problem": "one-sentence problem statement", "persona": "who has it",
"functional_cause": "why existing options fail", "emotional_load": "how it feels",
"evidence_quotes": ["verbatim quotes"], "alternatives": ["what they tried"]}

Set "found" to false when the page holds no extractable problem.`,
			page.URL, page.Title, page.Content)

		raw, llmErr := c.llm.Complete(ctx, extractSystemPrompt, prompt)
		if llmErr != nil {
			return c.failJob(ctx, job.ID, fmt.Errorf("extraction pass aborted: %w", llmErr))
		}

		var item extractedNiche
		if err := decodeJSON(raw, &item); err != nil {
			skipped++
			c.logger.Warn().
				Str("job_id", job.ID).
				Str("url", page.URL).
				Err(err).
				Msg("Unparseable extraction response, page skipped")
			continue
		}
		if !item.Found || strings.TrimSpace(item.Problem) == "" {
			skipped++
			continue
		}

		niche := &models.Niche{
			ID:              common.NicheID(job.ID, page.URL),
			JobID:           job.ID,
			SourceURL:       page.URL,
			Problem:         item.Problem,
			Persona:         item.Persona,
			FunctionalCause: item.FunctionalCause,
			EmotionalLoad:   item.EmotionalLoad,
			EvidenceQuotes:  item.EvidenceQuotes,
			Alternatives:    item.Alternatives,
			CreatedAt:       time.Now(),
		}
		if err := c.storage.NicheStorage().SaveNiche(ctx, niche); err != nil {
			return nil, fmt.Errorf("failed to store extracted niche: %w", err)
		}
		extracted++
	}

	total, err := c.storage.NicheStorage().CountNiches(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count niches: %w", err)
	}

	c.logger.Info().
		Str("job_id", job.ID).
		Int("pages", len(pages)).
		Int("extracted", extracted).
		Int("skipped", skipped).
		Msg("Extraction pass completed")

	return c.transition(ctx, job.ID, models.JobStatusExtractDone, func(j *models.Job) {
		j.Counters.NichesExtracted = total
	})
}

// runFilterPass is the first analysis pass: one LLM call marks low-signal
// niches filtered out. Pass-level parse failures fail the job; the pass is
// re-runnable because it only sets markers.
func (c *Coordinator) runFilterPass(ctx context.Context, job *models.Job) (*models.Job, error) {
	niches, err := c.storage.NicheStorage().ListNiches(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list niches: %w", err)
	}
	if len(niches) == 0 {
		return c.transition(ctx, job.ID, models.JobStatusAnalyzing2, nil)
	}

	prompt := fmt.Sprintf(`Review these extracted problems and identify entries that are
too vague, duplicated verbatim, or not actionable as a product niche.

%s

Respond with a single JSON object: {"remove": ["id", ...]}
Use an empty list when everything should be kept.`, nicheDigest(niches, false))

	raw, llmErr := c.llm.Complete(ctx, analysisSystemPrompt, prompt)
	if llmErr != nil {
		return c.failJob(ctx, job.ID, fmt.Errorf("filter pass aborted: %w", llmErr))
	}

	var verdict struct {
		Remove []string `json:"remove"`
	}
	if err := decodeJSON(raw, &verdict); err != nil {
		return c.failJob(ctx, job.ID, fmt.Errorf("filter pass returned unparseable output: %w", err))
	}

	removed := 0
	byID := nichesByID(niches)
	for _, id := range verdict.Remove {
		niche, ok := byID[id]
		if !ok || niche.FilteredOut {
			continue
		}
		niche.FilteredOut = true
		if err := c.storage.NicheStorage().UpdateNiche(ctx, niche); err != nil {
			return nil, fmt.Errorf("failed to mark niche filtered: %w", err)
		}
		removed++
	}

	c.logger.Info().
		Str("job_id", job.ID).
		Int("reviewed", len(niches)).
		Int("removed", removed).
		Msg("Filter pass completed")

	return c.transition(ctx, job.ID, models.JobStatusAnalyzing2, func(j *models.Job) {
		j.Counters.URLsFiltered += removed
	})
}

// runScorePass is the second analysis pass: one LLM call assigns every
// surviving niche a 0-10 potential score with a rationale.
func (c *Coordinator) runScorePass(ctx context.Context, job *models.Job) (*models.Job, error) {
	niches, err := c.storage.NicheStorage().ListFinalNiches(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list niches: %w", err)
	}
	if len(niches) == 0 {
		return c.transition(ctx, job.ID, models.JobStatusAnalyzing3, nil)
	}

	prompt := fmt.Sprintf(`Score each problem for niche product potential on a 0-10 scale,
weighing problem severity, audience specificity, and evidence strength.

%s

Respond with a JSON array: [{"id": "...", "score": 7.5, "rationale": "one sentence"}, ...]
Include every id exactly once.`, nicheDigest(niches, true))

	raw, llmErr := c.llm.Complete(ctx, analysisSystemPrompt, prompt)
	if llmErr != nil {
		return c.failJob(ctx, job.ID, fmt.Errorf("scoring pass aborted: %w", llmErr))
	}

	var scores []struct {
		ID        string  `json:"id"`
		Score     float64 `json:"score"`
		Rationale string  `json:"rationale"`
	}
	if err := decodeJSON(raw, &scores); err != nil {
		return c.failJob(ctx, job.ID, fmt.Errorf("scoring pass returned unparseable output: %w", err))
	}

	scored := 0
	byID := nichesByID(niches)
	for _, s := range scores {
		niche, ok := byID[s.ID]
		if !ok {
			continue
		}
		niche.Score = s.Score
		niche.ScoreRationale = s.Rationale
		if err := c.storage.NicheStorage().UpdateNiche(ctx, niche); err != nil {
			return nil, fmt.Errorf("failed to store niche score: %w", err)
		}
		scored++
	}

	c.logger.Info().
		Str("job_id", job.ID).
		Int("scored", scored).
		Msg("Scoring pass completed")

	return c.transition(ctx, job.ID, models.JobStatusAnalyzing3, nil)
}

// runConsolidatePass is the final analysis pass: one LLM call folds
// duplicate niches into a surviving record, then the job completes.
func (c *Coordinator) runConsolidatePass(ctx context.Context, job *models.Job) (*models.Job, error) {
	niches, err := c.storage.NicheStorage().ListFinalNiches(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list niches: %w", err)
	}
	if len(niches) < 2 {
		return c.transition(ctx, job.ID, models.JobStatusCompleted, nil)
	}

	prompt := fmt.Sprintf(`Identify groups of problems below that describe the same
underlying niche. For each group pick the strongest entry to keep.

%s

Respond with a single JSON object:
{"merges": [{"keep": "id", "merge": ["id", ...]}, ...]}
Use an empty list when nothing should be merged.`, nicheDigest(niches, true))

	raw, llmErr := c.llm.Complete(ctx, analysisSystemPrompt, prompt)
	if llmErr != nil {
		return c.failJob(ctx, job.ID, fmt.Errorf("consolidation pass aborted: %w", llmErr))
	}

	var verdict struct {
		Merges []struct {
			Keep  string   `json:"keep"`
			Merge []string `json:"merge"`
		} `json:"merges"`
	}
	if err := decodeJSON(raw, &verdict); err != nil {
		return c.failJob(ctx, job.ID, fmt.Errorf("consolidation pass returned unparseable output: %w", err))
	}

	merged := 0
	byID := nichesByID(niches)
	for _, group := range verdict.Merges {
		keeper, ok := byID[group.Keep]
		if !ok {
			continue
		}
		for _, id := range group.Merge {
			niche, ok := byID[id]
			if !ok || id == keeper.ID || niche.MergedInto != "" {
				continue
			}
			niche.MergedInto = keeper.ID
			if err := c.storage.NicheStorage().UpdateNiche(ctx, niche); err != nil {
				return nil, fmt.Errorf("failed to record niche merge: %w", err)
			}
			merged++
		}
	}

	c.logger.Info().
		Str("job_id", job.ID).
		Int("merged", merged).
		Msg("Consolidation pass completed")

	return c.transition(ctx, job.ID, models.JobStatusCompleted, nil)
}

// nicheDigest renders niches as compact JSON lines for analysis prompts.
func nicheDigest(niches []*models.Niche, withScores bool) string {
	var sb strings.Builder
	for _, n := range niches {
		entry := map[string]any{
			"id":      n.ID,
			"problem": n.Problem,
			"persona": n.Persona,
		}
		if n.FunctionalCause != "" {
			entry["functional_cause"] = n.FunctionalCause
		}
		if withScores && n.Score > 0 {
			entry["score"] = n.Score
		}
		line, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func nichesByID(niches []*models.Niche) map[string]*models.Niche {
	byID := make(map[string]*models.Niche, len(niches))
	for _, n := range niches {
		byID[n.ID] = n
	}
	return byID
}

// decodeJSON parses an LLM response as JSON, tolerating markdown code
// fences and surrounding prose around the first JSON value.
func decodeJSON(raw string, v any) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	if start := strings.IndexAny(cleaned, "{["); start > 0 {
		cleaned = cleaned[start:]
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	return nil
}
