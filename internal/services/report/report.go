// Package report renders the consolidated niche set of a completed job as
// markdown, HTML, or PDF for export.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/nichefinder/internal/models"
	"github.com/yuin/goldmark"
)

// Markdown builds the export document for a job's final niches.
func Markdown(job *models.Job, niches []*models.Niche) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Niche Report\n\n")
	fmt.Fprintf(&b, "Job: %s  \n", job.ID)
	fmt.Fprintf(&b, "Contexts: %s  \n", strings.Join(job.Config.LifeContexts, ", "))
	fmt.Fprintf(&b, "Product words: %s  \n", strings.Join(job.Config.ProductWords, ", "))
	fmt.Fprintf(&b, "URLs scraped: %d, niches extracted: %d, final set: %d\n\n",
		job.Counters.URLsScraped, job.Counters.NichesExtracted, len(niches))

	if len(niches) == 0 {
		b.WriteString("No niches survived the analysis passes.\n")
		return b.String()
	}

	for i, n := range niches {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, n.Problem)
		fmt.Fprintf(&b, "- **Persona**: %s\n", n.Persona)
		if n.FunctionalCause != "" {
			fmt.Fprintf(&b, "- **Functional cause**: %s\n", n.FunctionalCause)
		}
		if n.EmotionalLoad != "" {
			fmt.Fprintf(&b, "- **Emotional load**: %s\n", n.EmotionalLoad)
		}
		if len(n.Alternatives) > 0 {
			fmt.Fprintf(&b, "- **Current alternatives**: %s\n", strings.Join(n.Alternatives, "; "))
		}
		if n.Score > 0 {
			fmt.Fprintf(&b, "- **Score**: %.1f", n.Score)
			if n.ScoreRationale != "" {
				fmt.Fprintf(&b, " (%s)", n.ScoreRationale)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- **Source**: %s\n", n.SourceURL)
		for _, quote := range n.EvidenceQuotes {
			fmt.Fprintf(&b, "\n> %s\n", quote)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the markdown report to HTML.
func HTML(job *models.Job, niches []*models.Niche) ([]byte, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(job, niches)), &buf); err != nil {
		return nil, fmt.Errorf("failed to render report HTML: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders the report as a simple paginated PDF.
func PDF(job *models.Job, niches []*models.Niche) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, "Niche Report", "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, fmt.Sprintf("Job %s | contexts: %s | product words: %s",
		job.ID,
		strings.Join(job.Config.LifeContexts, ", "),
		strings.Join(job.Config.ProductWords, ", ")), "", "L", false)
	pdf.Ln(4)

	for i, n := range niches {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, n.Problem), "", "L", false)

		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, "Persona: "+n.Persona, "", "L", false)
		if n.Score > 0 {
			pdf.MultiCell(0, 5, fmt.Sprintf("Score: %.1f", n.Score), "", "L", false)
		}
		pdf.MultiCell(0, 5, "Source: "+n.SourceURL, "", "L", false)
		for _, quote := range n.EvidenceQuotes {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(0, 5, `"`+quote+`"`, "", "L", false)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}
	return buf.Bytes(), nil
}
