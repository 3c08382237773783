package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"litwatch/internal/domain"
	"litwatch/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockTextGenerator is defined in summarize_article_usecase_test.go.

func newSynthesizeUsecase(generator *MockTextGenerator) usecase.SynthesizeRunUsecase {
	return usecase.NewSynthesizeRunUsecase(
		generator, usecase.NewPromptBuilder(), newTestRetry(), 1024, newTestLogger(),
	)
}

func TestSynthesize_CitesOnlyKnownArticles(t *testing.T) {
	mockGenerator := new(MockTextGenerator)
	uc := newSynthesizeUsecase(mockGenerator)

	ctx := context.Background()
	runID := uuid.New()

	// Out of completion order on purpose, with one failed record mixed in.
	summaries := []domain.Summary{
		{ArticleSourceID: "2401.00002v1", Status: domain.SummaryStatusSucceeded, SummaryText: "Second summary."},
		{ArticleSourceID: "2401.00001v1", Status: domain.SummaryStatusSucceeded, SummaryText: "First summary."},
		{ArticleSourceID: "2401.00003v1", Status: domain.SummaryStatusFailed, SummaryText: "Broken."},
	}

	mockGenerator.On("Complete", ctx, mock.Anything, mock.MatchedBy(func(prompt string) bool {
		// Only succeeded summaries enter the prompt, sorted by identifier.
		first := strings.Index(prompt, "2401.00001v1")
		second := strings.Index(prompt, "2401.00002v1")
		return first >= 0 && second >= 0 && first < second &&
			!strings.Contains(prompt, "2401.00003v1")
	}), 1024).Return("Both [2401.00002v1] and [2401.00001v1] agree, unlike [9999.99999v9]. See [2401.00001v1].", nil)

	synthesis := uc.Synthesize(ctx, runID, "quantum error correction", summaries)

	assert.Equal(t, runID, synthesis.RunID)
	assert.Equal(t, "quantum error correction", synthesis.Keyword)
	// Hallucinated identifier dropped, duplicates collapsed, sorted.
	assert.Equal(t, []string{"2401.00001v1", "2401.00002v1"}, synthesis.CitedArticleIDs)
	assert.Contains(t, synthesis.SynthesisText, "agree")
	mockGenerator.AssertExpectations(t)
}

func TestSynthesize_NoSucceededSummaries(t *testing.T) {
	mockGenerator := new(MockTextGenerator)
	uc := newSynthesizeUsecase(mockGenerator)

	summaries := []domain.Summary{
		{ArticleSourceID: "a", Status: domain.SummaryStatusFailed},
		{ArticleSourceID: "b", Status: domain.SummaryStatusFailed},
	}

	synthesis := uc.Synthesize(context.Background(), uuid.New(), "graphene", summaries)

	assert.Equal(t, "No synthesis possible: none of the collected articles could be summarized.", synthesis.SynthesisText)
	assert.Empty(t, synthesis.CitedArticleIDs)
	mockGenerator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSynthesize_GenerationFailureFallsBack(t *testing.T) {
	mockGenerator := new(MockTextGenerator)
	uc := newSynthesizeUsecase(mockGenerator)

	ctx := context.Background()
	summaries := []domain.Summary{
		{ArticleSourceID: "2401.00002v1", Status: domain.SummaryStatusSucceeded, SummaryText: "B."},
		{ArticleSourceID: "2401.00001v1", Status: domain.SummaryStatusSucceeded, SummaryText: "A."},
	}

	mockGenerator.On("Complete", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return("", domain.NewGenerationError("complete", errors.New("model unavailable"), false))

	synthesis := uc.Synthesize(ctx, uuid.New(), "graphene", summaries)

	assert.Equal(t,
		`Cross-article synthesis was unavailable for "graphene". Per-article summaries were produced for [2401.00001v1], [2401.00002v1].`,
		synthesis.SynthesisText)
	// The fallback still credits every summarized article.
	assert.Equal(t, []string{"2401.00001v1", "2401.00002v1"}, synthesis.CitedArticleIDs)
}

func TestSynthesize_EmptyGenerationFallsBack(t *testing.T) {
	mockGenerator := new(MockTextGenerator)
	uc := newSynthesizeUsecase(mockGenerator)

	ctx := context.Background()
	summaries := []domain.Summary{
		{ArticleSourceID: "a1", Status: domain.SummaryStatusSucceeded, SummaryText: "A."},
	}

	mockGenerator.On("Complete", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return("  \n ", nil)

	synthesis := uc.Synthesize(ctx, uuid.New(), "topic", summaries)

	assert.Contains(t, synthesis.SynthesisText, "Cross-article synthesis was unavailable")
	assert.Equal(t, []string{"a1"}, synthesis.CitedArticleIDs)
}
