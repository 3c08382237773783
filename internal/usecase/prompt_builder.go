package usecase

import (
	"fmt"
	"strings"

	"litwatch/internal/domain"
)

// quickPreviewAbstractChars bounds the abstract excerpt fed into the
// quick preview prompt per article.
const quickPreviewAbstractChars = 200

// PromptBuilder composes the instructions and prompts sent to the text
// generator. Prompts use a structured XML-section layout that separates
// instructions, context and task, so the model cannot confuse article
// text with directives.
type PromptBuilder struct{}

// NewPromptBuilder creates a prompt builder (stateless).
func NewPromptBuilder() PromptBuilder {
	return PromptBuilder{}
}

// SummaryInstruction is the system instruction for per-article
// summarization.
func (PromptBuilder) SummaryInstruction() string {
	return renderInstructions([]string{
		"You are a research assistant summarizing one scientific article.",
		"Use ONLY the excerpts inside <context>. Do not add external knowledge.",
		"Write 2 to 5 sentences covering the objective, the approach and the key findings.",
		"Write plain prose. No headings, no bullet points, no preamble.",
	})
}

// SummaryPrompt renders the user prompt for summarizing one article from
// its retrieved context.
func (PromptBuilder) SummaryPrompt(article domain.Article, contextText string) string {
	var sb strings.Builder
	sb.WriteString("<context>\n")
	sb.WriteString(escapePrompt(contextText))
	sb.WriteString("\n</context>\n\n")

	sb.WriteString("<article>\n")
	sb.WriteString("  <source_id>")
	sb.WriteString(escapePrompt(article.SourceID))
	sb.WriteString("</source_id>\n")
	sb.WriteString("  <title>")
	sb.WriteString(escapePrompt(article.Title))
	sb.WriteString("</title>\n")
	if !article.PublishedAt.IsZero() {
		sb.WriteString("  <published_at>")
		sb.WriteString(article.PublishedAt.Format("2006-01-02"))
		sb.WriteString("</published_at>\n")
	}
	sb.WriteString("</article>\n\n")

	sb.WriteString("<task>\nSummarize this article.\n</task>")
	return sb.String()
}

// SynthesisInstruction is the system instruction for the cross-article
// synthesis.
func (PromptBuilder) SynthesisInstruction() string {
	return renderInstructions([]string{
		"You are a research assistant writing the cross-article synthesis of a literature monitoring report.",
		"Use ONLY the article summaries inside <summaries>.",
		"Describe the main trends, notable results, convergences and divergent perspectives across the articles.",
		"Cite articles inline with their bracketed identifier, for example [2401.12345v2]. Cite only identifiers that appear in <summaries>.",
		"Write one or two paragraphs of plain prose.",
	})
}

// SynthesisPrompt renders the user prompt for synthesizing the succeeded
// summaries of a run. Each summary is headed by its bracketed source id
// so the model cites in the same form.
func (PromptBuilder) SynthesisPrompt(keyword string, summaries []domain.Summary) string {
	var sb strings.Builder
	sb.WriteString("<keyword>")
	sb.WriteString(escapePrompt(keyword))
	sb.WriteString("</keyword>\n\n")

	sb.WriteString("<summaries>\n")
	for _, s := range summaries {
		sb.WriteString("  <summary>\n")
		sb.WriteString("    <source_id>[")
		sb.WriteString(escapePrompt(s.ArticleSourceID))
		sb.WriteString("]</source_id>\n")
		sb.WriteString("    <text>")
		sb.WriteString(escapePrompt(s.SummaryText))
		sb.WriteString("</text>\n")
		sb.WriteString("  </summary>\n")
	}
	sb.WriteString("</summaries>\n\n")

	sb.WriteString("<task>\nWrite the synthesis.\n</task>")
	return sb.String()
}

// QuickPreviewInstruction is the system instruction for the early run
// preview.
func (PromptBuilder) QuickPreviewInstruction() string {
	return renderInstructions([]string{
		"You are a research assistant writing the opening preview of a literature monitoring report.",
		"Use ONLY the titles and abstract excerpts inside <articles>.",
		"Write 2 to 3 sentences sketching what this batch of articles covers.",
		"Plain prose. No citations, no headings.",
	})
}

// QuickPreviewPrompt renders the user prompt for the quick preview from
// the first few collected articles.
func (PromptBuilder) QuickPreviewPrompt(keyword string, articles []domain.Article) string {
	var sb strings.Builder
	sb.WriteString("<keyword>")
	sb.WriteString(escapePrompt(keyword))
	sb.WriteString("</keyword>\n\n")

	sb.WriteString("<articles>\n")
	for _, a := range articles {
		sb.WriteString("  <article>\n")
		sb.WriteString("    <title>")
		sb.WriteString(escapePrompt(a.Title))
		sb.WriteString("</title>\n")
		if excerpt := domain.TruncateAtSentence(a.Abstract, quickPreviewAbstractChars); excerpt != "" {
			sb.WriteString("    <abstract_excerpt>")
			sb.WriteString(escapePrompt(excerpt))
			sb.WriteString("</abstract_excerpt>\n")
		}
		sb.WriteString("  </article>\n")
	}
	sb.WriteString("</articles>\n\n")

	sb.WriteString(fmt.Sprintf("<task>\nWrite the preview for these %d articles.\n</task>", len(articles)))
	return sb.String()
}

// renderInstructions writes the lines verbatim: they are authored
// constants, and several name prompt sections by their literal tag.
func renderInstructions(lines []string) string {
	var sb strings.Builder
	sb.WriteString("<instructions>\n")
	for _, line := range lines {
		sb.WriteString("  <line>")
		sb.WriteString(line)
		sb.WriteString("</line>\n")
	}
	sb.WriteString("</instructions>")
	return sb.String()
}

func escapePrompt(value string) string {
	s := strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
