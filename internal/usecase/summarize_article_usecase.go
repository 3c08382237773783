package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"litwatch/internal/domain"
	"litwatch/internal/retry"

	"github.com/google/uuid"
)

// contextSeparator joins retrieved chunks in the grounding context.
const contextSeparator = "\n---\n"

// SummarizerConfig carries the summarizer's tunable bounds.
type SummarizerConfig struct {
	TopK                 int
	MaxContextChars      int
	FallbackSummaryChars int
	MaxTokens            int
}

// SummarizeArticleUsecase produces the per-article summary record of a
// run. It never returns an error: generation failure is encoded in the
// record so downstream stages always have usable text.
type SummarizeArticleUsecase interface {
	Summarize(ctx context.Context, runID uuid.UUID, article domain.Article) domain.Summary
}

type summarizeArticleUsecase struct {
	retrieve  RetrieveContextUsecase
	generator domain.TextGenerator
	prompts   PromptBuilder
	retryExec *retry.Executor
	cfg       SummarizerConfig
	logger    *slog.Logger
}

// NewSummarizeArticleUsecase creates a summarizer over the retriever and
// the text generator.
func NewSummarizeArticleUsecase(
	retrieve RetrieveContextUsecase,
	generator domain.TextGenerator,
	prompts PromptBuilder,
	retryExec *retry.Executor,
	cfg SummarizerConfig,
	logger *slog.Logger,
) SummarizeArticleUsecase {
	return &summarizeArticleUsecase{
		retrieve:  retrieve,
		generator: generator,
		prompts:   prompts,
		retryExec: retryExec,
		cfg:       cfg,
		logger:    logger,
	}
}

func (u *summarizeArticleUsecase) Summarize(ctx context.Context, runID uuid.UUID, article domain.Article) domain.Summary {
	summary := domain.Summary{
		RunID:           runID,
		ArticleSourceID: article.SourceID,
		Status:          domain.SummaryStatusSucceeded,
	}

	// Context comes from the article's own chunks only, never from
	// sibling articles of the run.
	chunks, err := u.retrieve.Retrieve(ctx, article.EmbeddingText(), []string{article.SourceID}, u.cfg.TopK)
	if err != nil {
		return u.fallback(article, summary, "context retrieval failed", err)
	}

	contextText, refs := joinContext(chunks, u.cfg.MaxContextChars)
	summary.ContextChunkRefs = refs

	var generated string
	genErr := u.retryExec.Execute(ctx, func() error {
		var callErr error
		generated, callErr = u.generator.Complete(ctx,
			u.prompts.SummaryInstruction(),
			u.prompts.SummaryPrompt(article, contextText),
			u.cfg.MaxTokens)
		return callErr
	})
	if genErr != nil {
		return u.fallback(article, summary, "generation failed", genErr)
	}

	generated = strings.TrimSpace(generated)
	if generated == "" {
		return u.fallback(article, summary, "generation returned empty text", nil)
	}

	summary.SummaryText = generated
	u.logger.Info("summary_completed",
		slog.String("article_id", article.SourceID),
		slog.Int("context_chunks", len(refs)))
	return summary
}

// fallback marks the record failed and substitutes the truncated
// abstract (the title when the abstract is empty) as summary text.
func (u *summarizeArticleUsecase) fallback(article domain.Article, summary domain.Summary, reason string, err error) domain.Summary {
	detail := reason
	if err != nil {
		detail = fmt.Sprintf("%s: %v", reason, err)
	}

	summary.Status = domain.SummaryStatusFailed
	summary.ErrorDetail = detail
	summary.SummaryText = fallbackSummaryText(article, u.cfg.FallbackSummaryChars)

	u.logger.Warn("summary_fallback",
		slog.String("article_id", article.SourceID),
		slog.String("reason", detail))
	return summary
}

func fallbackSummaryText(article domain.Article, maxChars int) string {
	if strings.TrimSpace(article.Abstract) == "" {
		return article.Title
	}
	return domain.TruncateAtSentence(article.Abstract, maxChars)
}

// joinContext concatenates chunk texts separated by contextSeparator up
// to maxChars and returns the refs of the chunks that made it in. Chunks
// that do not fit are dropped from the end, never merged; when not even
// the first chunk fits, it is truncated so a non-empty chunk set always
// yields context.
func joinContext(chunks []domain.Chunk, maxChars int) (string, []domain.ChunkRef) {
	var sb strings.Builder
	var refs []domain.ChunkRef

	for _, c := range chunks {
		extra := len(c.Text)
		if sb.Len() > 0 {
			extra += len(contextSeparator)
		}
		if maxChars > 0 && sb.Len()+extra > maxChars {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(contextSeparator)
		}
		sb.WriteString(c.Text)
		refs = append(refs, c.Ref())
	}

	if len(refs) == 0 && len(chunks) > 0 && maxChars > 0 {
		refs = append(refs, chunks[0].Ref())
		return domain.TruncateAtSentence(chunks[0].Text, maxChars), refs
	}

	return sb.String(), refs
}
