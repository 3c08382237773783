package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"litwatch/internal/domain"
	"litwatch/internal/retry"

	"github.com/google/uuid"
)

// noSynthesisText is recorded when a run has zero succeeded summaries.
// This is an expected outcome, not a pipeline failure.
const noSynthesisText = "No synthesis possible: none of the collected articles could be summarized."

// SynthesizeRunUsecase produces the cross-article overview of a run from
// its summary records. It never returns an error: when generation fails
// the synthesis degrades to a fallback listing the summarized articles.
type SynthesizeRunUsecase interface {
	Synthesize(ctx context.Context, runID uuid.UUID, keyword string, summaries []domain.Summary) domain.Synthesis
}

type synthesizeRunUsecase struct {
	generator domain.TextGenerator
	prompts   PromptBuilder
	retryExec *retry.Executor
	maxTokens int
	logger    *slog.Logger
}

// NewSynthesizeRunUsecase creates a synthesizer over the text generator.
func NewSynthesizeRunUsecase(
	generator domain.TextGenerator,
	prompts PromptBuilder,
	retryExec *retry.Executor,
	maxTokens int,
	logger *slog.Logger,
) SynthesizeRunUsecase {
	return &synthesizeRunUsecase{
		generator: generator,
		prompts:   prompts,
		retryExec: retryExec,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func (u *synthesizeRunUsecase) Synthesize(ctx context.Context, runID uuid.UUID, keyword string, summaries []domain.Summary) domain.Synthesis {
	// Prompt order must not depend on summarization completion order.
	sorted := make([]domain.Summary, len(summaries))
	copy(sorted, summaries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ArticleSourceID < sorted[j].ArticleSourceID
	})

	var succeeded []domain.Summary
	for _, s := range sorted {
		if s.Status == domain.SummaryStatusSucceeded {
			succeeded = append(succeeded, s)
		}
	}

	synthesis := domain.Synthesis{
		RunID:           runID,
		Keyword:         keyword,
		CitedArticleIDs: []string{},
	}

	if len(succeeded) == 0 {
		synthesis.SynthesisText = noSynthesisText
		u.logger.Warn("synthesis_skipped",
			slog.String("run_id", runID.String()),
			slog.Int("summaries", len(summaries)))
		return synthesis
	}

	allowed := make([]string, len(succeeded))
	for i, s := range succeeded {
		allowed[i] = s.ArticleSourceID
	}

	var generated string
	err := u.retryExec.Execute(ctx, func() error {
		var callErr error
		generated, callErr = u.generator.Complete(ctx,
			u.prompts.SynthesisInstruction(),
			u.prompts.SynthesisPrompt(keyword, succeeded),
			u.maxTokens)
		return callErr
	})

	generated = strings.TrimSpace(generated)
	if err != nil || generated == "" {
		reason := "empty generation"
		if err != nil {
			reason = err.Error()
		}
		u.logger.Warn("synthesis_fallback",
			slog.String("run_id", runID.String()),
			slog.String("reason", reason))

		// A run with good summaries still completes; the fallback text
		// cites every summarized article.
		synthesis.SynthesisText = fallbackSynthesisText(keyword, allowed)
		synthesis.CitedArticleIDs = allowed
		return synthesis
	}

	synthesis.SynthesisText = generated
	synthesis.CitedArticleIDs = SanitizeCitations(ExtractCitations(generated), allowed)

	u.logger.Info("synthesis_completed",
		slog.String("run_id", runID.String()),
		slog.Int("summaries", len(succeeded)),
		slog.Int("cited_articles", len(synthesis.CitedArticleIDs)))
	return synthesis
}

func fallbackSynthesisText(keyword string, articleIDs []string) string {
	cited := make([]string, len(articleIDs))
	for i, id := range articleIDs {
		cited[i] = "[" + id + "]"
	}
	return fmt.Sprintf("Cross-article synthesis was unavailable for %q. Per-article summaries were produced for %s.",
		keyword, strings.Join(cited, ", "))
}
