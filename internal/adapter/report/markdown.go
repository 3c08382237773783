package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"litwatch/internal/domain"
)

const timestampLayout = "20060102_150405"

// MarkdownAssembler renders a run report to a Markdown file under Dir.
type MarkdownAssembler struct {
	Dir string

	// now is swapped in tests to pin the filename timestamp.
	now func() time.Time
}

// NewMarkdownAssembler creates an assembler writing into dir.
func NewMarkdownAssembler(dir string) *MarkdownAssembler {
	return &MarkdownAssembler{Dir: dir, now: time.Now}
}

// Assemble writes the report and returns the file path.
func (a *MarkdownAssembler) Assemble(ctx context.Context, report domain.RunReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports dir: %w", err)
	}

	filename := fmt.Sprintf("report_%s_%s.md", slugify(report.Run.Keyword), a.now().UTC().Format(timestampLayout))
	path := filepath.Join(a.Dir, filename)

	if err := os.WriteFile(path, []byte(render(report)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func render(report domain.RunReport) string {
	var b strings.Builder

	succeeded := 0
	for _, entry := range report.Entries {
		if entry.Summary.Status == domain.SummaryStatusSucceeded {
			succeeded++
		}
	}

	fmt.Fprintf(&b, "# Literature Monitoring Report\n\n")
	fmt.Fprintf(&b, "**Keyword:** %s\n\n", report.Run.Keyword)
	fmt.Fprintf(&b, "**Run:** %s\n\n", report.Run.ID)
	fmt.Fprintf(&b, "**Generated:** %s\n\n", report.Run.UpdatedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "**Articles:** %d summarized (%d via fallback), %d failed\n\n",
		len(report.Entries), len(report.Entries)-succeeded, len(report.Failures))

	if report.Run.QuickSummary != "" {
		b.WriteString("## Quick Preview\n\n")
		b.WriteString(report.Run.QuickSummary)
		b.WriteString("\n\n")
	}

	b.WriteString("## Synthesis\n\n")
	b.WriteString(report.Synthesis.SynthesisText)
	b.WriteString("\n\n")
	if len(report.Synthesis.CitedArticleIDs) > 0 {
		cited := make([]string, len(report.Synthesis.CitedArticleIDs))
		for i, id := range report.Synthesis.CitedArticleIDs {
			cited[i] = "[" + id + "]"
		}
		fmt.Fprintf(&b, "**Cited articles:** %s\n\n", strings.Join(cited, ", "))
	}

	b.WriteString("## Article Summaries\n\n")
	for i, entry := range report.Entries {
		renderEntry(&b, i+1, entry)
		if i < len(report.Entries)-1 {
			b.WriteString("---\n\n")
		}
	}

	if len(report.Failures) > 0 {
		b.WriteString("## Failed Articles\n\n")
		for _, failure := range report.Failures {
			fmt.Fprintf(&b, "- `%s` failed during %s: %s\n", failure.ArticleSourceID, failure.Stage, failure.Reason)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func renderEntry(b *strings.Builder, ordinal int, entry domain.ReportEntry) {
	article := entry.Article

	fmt.Fprintf(b, "### %d. %s\n\n", ordinal, article.Title)
	if len(article.Authors) > 0 {
		fmt.Fprintf(b, "**Authors:** %s\n\n", formatAuthors(article.Authors))
	}
	if !article.PublishedAt.IsZero() {
		fmt.Fprintf(b, "**Published:** %s\n\n", article.PublishedAt.UTC().Format("2006-01-02"))
	}
	if len(article.Categories) > 0 {
		fmt.Fprintf(b, "**Categories:** %s\n\n", strings.Join(article.Categories, ", "))
	}
	fmt.Fprintf(b, "**Source id:** %s\n\n", article.SourceID)

	b.WriteString(entry.Summary.SummaryText)
	b.WriteString("\n\n")

	if entry.Summary.Status == domain.SummaryStatusFailed {
		b.WriteString("*Summary unavailable; showing abstract excerpt.*\n\n")
	}

	var links []string
	if article.SourceURL != "" {
		links = append(links, fmt.Sprintf("[abs](%s)", article.SourceURL))
	}
	if article.PDFURL != "" {
		links = append(links, fmt.Sprintf("[pdf](%s)", article.PDFURL))
	}
	if len(links) > 0 {
		fmt.Fprintf(b, "**Links:** %s\n\n", strings.Join(links, " · "))
	}
}

// formatAuthors lists the first three authors, arXiv-citation style.
func formatAuthors(authors []string) string {
	if len(authors) <= 3 {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:3], ", ") + " et al."
}

// slugify keeps the keyword recognizable in the filename while staying
// filesystem-safe.
func slugify(keyword string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(keyword) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	slug := strings.TrimRight(b.String(), "_")
	if slug == "" {
		return "run"
	}
	return slug
}

var _ domain.ReportAssembler = (*MarkdownAssembler)(nil)
