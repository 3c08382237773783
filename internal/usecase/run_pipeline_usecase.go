package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"litwatch/internal/domain"
	"litwatch/internal/pipeline"
	"litwatch/internal/retry"
)

// quickPreviewMaxTokens bounds the early preview generation; the preview
// is two to three sentences.
const quickPreviewMaxTokens = 256

// PipelineConfig carries the pipeline controller's stage bounds.
type PipelineConfig struct {
	IndexConcurrency     int
	SummaryConcurrency   int
	QuickSummaryArticles int
}

// RunPipelineUsecase drives one acquired run through collecting,
// indexing, summarizing, synthesizing and report assembly.
type RunPipelineUsecase interface {
	// Execute advances the run to completed, or returns an error whose
	// message is the failure reason to record on the run. The caller
	// owns marking the run failed.
	Execute(ctx context.Context, run *domain.Run) error
}

type runPipelineUsecase struct {
	runRepo       domain.RunRepository
	articleRepo   domain.ArticleRepository
	summaryRepo   domain.SummaryRepository
	synthesisRepo domain.SynthesisRepository
	source        domain.LiteratureSource
	indexer       IndexArticleUsecase
	summarizer    SummarizeArticleUsecase
	synthesizer   SynthesizeRunUsecase
	assembler     domain.ReportAssembler
	generator     domain.TextGenerator
	prompts       PromptBuilder
	retryExec     *retry.Executor
	cfg           PipelineConfig
	logger        *slog.Logger
}

// NewRunPipelineUsecase wires the pipeline controller together.
func NewRunPipelineUsecase(
	runRepo domain.RunRepository,
	articleRepo domain.ArticleRepository,
	summaryRepo domain.SummaryRepository,
	synthesisRepo domain.SynthesisRepository,
	source domain.LiteratureSource,
	indexer IndexArticleUsecase,
	summarizer SummarizeArticleUsecase,
	synthesizer SynthesizeRunUsecase,
	assembler domain.ReportAssembler,
	generator domain.TextGenerator,
	prompts PromptBuilder,
	retryExec *retry.Executor,
	cfg PipelineConfig,
	logger *slog.Logger,
) RunPipelineUsecase {
	return &runPipelineUsecase{
		runRepo:       runRepo,
		articleRepo:   articleRepo,
		summaryRepo:   summaryRepo,
		synthesisRepo: synthesisRepo,
		source:        source,
		indexer:       indexer,
		summarizer:    summarizer,
		synthesizer:   synthesizer,
		assembler:     assembler,
		generator:     generator,
		prompts:       prompts,
		retryExec:     retryExec,
		cfg:           cfg,
		logger:        logger,
	}
}

// Execute assumes the run was just acquired, i.e. is in collecting.
func (u *runPipelineUsecase) Execute(ctx context.Context, run *domain.Run) error {
	err := u.execute(ctx, run)
	if err == nil {
		return nil
	}
	// A timed-out or cancelled run records the plain reason, not the
	// stage that happened to observe it.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.New(failureReason(err))
	}
	return err
}

func (u *runPipelineUsecase) execute(ctx context.Context, run *domain.Run) error {
	log := u.logger.With(
		slog.String("run_id", run.ID.String()),
		slog.String("keyword", run.Keyword))
	log.Info("run_started", slog.Int("requested_articles", run.RequestedArticleCount))

	articles, err := u.collect(ctx, run, log)
	if err != nil {
		return err
	}

	u.quickPreview(ctx, run, articles, log)

	if err := u.transition(ctx, run, domain.RunStatusIndexing); err != nil {
		return err
	}
	indexed, failures := u.indexAll(ctx, articles, log)

	if err := u.transition(ctx, run, domain.RunStatusSummarizing); err != nil {
		return err
	}
	failures = append(failures, u.summarizeAll(ctx, run, indexed, log)...)

	if err := u.transition(ctx, run, domain.RunStatusSynthesizing); err != nil {
		return err
	}
	summaries, err := u.summaryRepo.ListByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load summaries: %w", err)
	}
	synthesis := u.synthesizer.Synthesize(ctx, run.ID, run.Keyword, summaries)
	if err := u.synthesisRepo.Insert(ctx, &synthesis); err != nil {
		return fmt.Errorf("failed to persist synthesis: %w", err)
	}

	if err := u.assembleReport(ctx, run, summaries, failures, synthesis, log); err != nil {
		return err
	}

	if err := u.transition(ctx, run, domain.RunStatusCompleted); err != nil {
		return err
	}

	log.Info("run_completed",
		slog.Int("articles", len(articles)),
		slog.Int("summaries", len(summaries)),
		slog.Int("failures", len(failures)))
	return nil
}

// transition checks for cancellation at the stage boundary before
// advancing the run's status.
func (u *runPipelineUsecase) transition(ctx context.Context, run *domain.Run, to domain.RunStatus) error {
	if err := ctx.Err(); err != nil {
		return errors.New(failureReason(err))
	}
	if err := u.runRepo.UpdateStatus(ctx, run.ID, to); err != nil {
		return fmt.Errorf("failed to move run to %s: %w", to, err)
	}
	run.Status = to
	return nil
}

func (u *runPipelineUsecase) collect(ctx context.Context, run *domain.Run, log *slog.Logger) ([]domain.Article, error) {
	var found []domain.Article
	err := u.retryExec.Execute(ctx, func() error {
		var searchErr error
		found, searchErr = u.source.Search(ctx, run.Keyword, run.RequestedArticleCount)
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("collection failed: %w", err)
	}

	// Collector output is untrusted: normalize and drop records without
	// an identity.
	articles := make([]domain.Article, 0, len(found))
	for _, a := range found {
		a = a.Normalize()
		if a.SourceID == "" {
			continue
		}
		articles = append(articles, a)
	}
	if len(articles) == 0 {
		return nil, errors.New("no articles found")
	}

	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.SourceID
	}
	if err := u.runRepo.SetArticleIDs(ctx, run.ID, ids); err != nil {
		return nil, fmt.Errorf("failed to record article ids: %w", err)
	}
	run.ArticleIDs = ids

	log.Info("collection_completed", slog.Int("article_count", len(articles)))
	return articles, nil
}

// quickPreview generates the early run digest from the first few
// collected articles. Best effort: failures are logged, never fatal.
func (u *runPipelineUsecase) quickPreview(ctx context.Context, run *domain.Run, articles []domain.Article, log *slog.Logger) {
	n := u.cfg.QuickSummaryArticles
	if n <= 0 {
		return
	}
	if n > len(articles) {
		n = len(articles)
	}

	var text string
	err := u.retryExec.Execute(ctx, func() error {
		var genErr error
		text, genErr = u.generator.Complete(ctx,
			u.prompts.QuickPreviewInstruction(),
			u.prompts.QuickPreviewPrompt(run.Keyword, articles[:n]),
			quickPreviewMaxTokens)
		return genErr
	})
	if err != nil {
		log.Warn("quick_preview_skipped", slog.String("error", err.Error()))
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if err := u.runRepo.SetQuickSummary(ctx, run.ID, text); err != nil {
		log.Warn("quick_preview_skipped", slog.String("error", err.Error()))
		return
	}
	run.QuickSummary = text
}

func (u *runPipelineUsecase) indexAll(ctx context.Context, articles []domain.Article, log *slog.Logger) ([]domain.Article, []domain.ArticleFailure) {
	results := pipeline.Run(ctx, pipeline.Stage[domain.Article, []domain.ChunkRef]{
		Name:        "indexing",
		Concurrency: u.cfg.IndexConcurrency,
		Process: func(ctx context.Context, article domain.Article) ([]domain.ChunkRef, error) {
			return u.indexer.Index(ctx, article)
		},
	}, articles)

	var indexed []domain.Article
	var failures []domain.ArticleFailure
	for i, res := range results {
		if res.Err != nil {
			failures = append(failures, domain.ArticleFailure{
				ArticleSourceID: articles[i].SourceID,
				Stage:           "indexing",
				Reason:          failureReason(res.Err),
			})
			continue
		}
		indexed = append(indexed, articles[i])
	}

	log.Info("indexing_completed",
		slog.Int("indexed", len(indexed)),
		slog.Int("failed", len(failures)))
	return indexed, failures
}

func (u *runPipelineUsecase) summarizeAll(ctx context.Context, run *domain.Run, articles []domain.Article, log *slog.Logger) []domain.ArticleFailure {
	results := pipeline.Run(ctx, pipeline.Stage[domain.Article, domain.Summary]{
		Name:        "summarizing",
		Concurrency: u.cfg.SummaryConcurrency,
		Process: func(ctx context.Context, article domain.Article) (domain.Summary, error) {
			if err := ctx.Err(); err != nil {
				return domain.Summary{}, err
			}
			summary := u.summarizer.Summarize(ctx, run.ID, article)
			if err := u.summaryRepo.Insert(ctx, &summary); err != nil {
				return domain.Summary{}, fmt.Errorf("failed to persist summary: %w", err)
			}
			return summary, nil
		},
	}, articles)

	var failures []domain.ArticleFailure
	succeeded, fallbacks := 0, 0
	for i, res := range results {
		if res.Err != nil {
			failures = append(failures, domain.ArticleFailure{
				ArticleSourceID: articles[i].SourceID,
				Stage:           "summarizing",
				Reason:          failureReason(res.Err),
			})
			continue
		}
		if res.Value.Status == domain.SummaryStatusSucceeded {
			succeeded++
		} else {
			fallbacks++
		}
	}

	log.Info("summarizing_completed",
		slog.Int("succeeded", succeeded),
		slog.Int("fallback", fallbacks),
		slog.Int("failed", len(failures)))
	return failures
}

func (u *runPipelineUsecase) assembleReport(ctx context.Context, run *domain.Run, summaries []domain.Summary, failures []domain.ArticleFailure, synthesis domain.Synthesis, log *slog.Logger) error {
	ids := make([]string, len(summaries))
	for i, s := range summaries {
		ids[i] = s.ArticleSourceID
	}
	articles, err := u.articleRepo.GetBySourceIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load articles for report: %w", err)
	}

	byID := make(map[string]domain.Article, len(articles))
	for _, a := range articles {
		byID[a.SourceID] = a
	}

	entries := make([]domain.ReportEntry, 0, len(summaries))
	for _, s := range summaries {
		article, ok := byID[s.ArticleSourceID]
		if !ok {
			continue
		}
		entries = append(entries, domain.ReportEntry{Article: article, Summary: s})
	}

	path, err := u.assembler.Assemble(ctx, domain.RunReport{
		Run:       *run,
		Entries:   entries,
		Failures:  failures,
		Synthesis: synthesis,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble report: %w", err)
	}

	if err := u.runRepo.SetReportPath(ctx, run.ID, path); err != nil {
		return fmt.Errorf("failed to record report path: %w", err)
	}
	run.ReportPath = path

	log.Info("report_written", slog.String("path", path))
	return nil
}

// failureReason renders an error as the human-readable reason stored on
// runs and failure records.
func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return err.Error()
}
