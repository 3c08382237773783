package usecase_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"litwatch/internal/domain"
	"litwatch/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks (repository mocks for article/chunk stores are defined in
// index_article_usecase_test.go, the generator in
// summarize_article_usecase_test.go) ---

type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *domain.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockRunRepository) AcquireNextPending(ctx context.Context) (*domain.Run, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.RunStatus) error {
	args := m.Called(ctx, id, to)
	return args.Error(0)
}

func (m *MockRunRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockRunRepository) SetArticleIDs(ctx context.Context, id uuid.UUID, articleIDs []string) error {
	args := m.Called(ctx, id, articleIDs)
	return args.Error(0)
}

func (m *MockRunRepository) SetQuickSummary(ctx context.Context, id uuid.UUID, text string) error {
	args := m.Called(ctx, id, text)
	return args.Error(0)
}

func (m *MockRunRepository) SetReportPath(ctx context.Context, id uuid.UUID, path string) error {
	args := m.Called(ctx, id, path)
	return args.Error(0)
}

type MockLiteratureSource struct {
	mock.Mock
}

func (m *MockLiteratureSource) Search(ctx context.Context, keyword string, maxResults int) ([]domain.Article, error) {
	args := m.Called(ctx, keyword, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Article), args.Error(1)
}

type MockSynthesisRepository struct {
	mock.Mock
}

func (m *MockSynthesisRepository) Insert(ctx context.Context, synthesis *domain.Synthesis) error {
	args := m.Called(ctx, synthesis)
	return args.Error(0)
}

func (m *MockSynthesisRepository) GetByRun(ctx context.Context, runID uuid.UUID) (*domain.Synthesis, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Synthesis), args.Error(1)
}

type MockReportAssembler struct {
	mock.Mock
}

func (m *MockReportAssembler) Assemble(ctx context.Context, report domain.RunReport) (string, error) {
	args := m.Called(ctx, report)
	return args.String(0), args.Error(1)
}

// memorySummaryRepo is a thread-safe in-memory SummaryRepository. The
// summarizing stage inserts concurrently, so a stateful fake beats
// per-call expectations here.
type memorySummaryRepo struct {
	mu      sync.Mutex
	records []domain.Summary
}

func (r *memorySummaryRepo) Insert(ctx context.Context, summary *domain.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *summary)
	return nil
}

func (r *memorySummaryRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Summary
	for _, s := range r.records {
		if s.RunID == runID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArticleSourceID < out[j].ArticleSourceID })
	return out, nil
}

func (r *memorySummaryRepo) all() []domain.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Summary, len(r.records))
	copy(out, r.records)
	return out
}

// stubEncoder returns a fixed unit vector per text and fails for texts
// containing failSubstring, which lets tests poison one article.
type stubEncoder struct {
	failSubstring string
}

func (s *stubEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if s.failSubstring != "" && strings.Contains(text, s.failSubstring) {
			return nil, domain.NewEmbeddingError("encode", errors.New("input rejected by model"), false)
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (s *stubEncoder) Model() string { return "stub-embed" }

// --- Fixture ---

// pipelineFixture wires a real pipeline controller over real index,
// retrieve, summarize and synthesize usecases, mocking only the ports at
// the system boundary.
type pipelineFixture struct {
	runRepo       *MockRunRepository
	articleRepo   *MockArticleRepository
	chunkRepo     *MockChunkRepository
	summaryRepo   *memorySummaryRepo
	synthesisRepo *MockSynthesisRepository
	source        *MockLiteratureSource
	generator     *MockTextGenerator
	assembler     *MockReportAssembler
	uc            usecase.RunPipelineUsecase

	statuses  []domain.RunStatus
	synthesis domain.Synthesis
	report    domain.RunReport
}

func newPipelineFixture(encoder *stubEncoder) *pipelineFixture {
	f := &pipelineFixture{
		runRepo:       new(MockRunRepository),
		articleRepo:   new(MockArticleRepository),
		chunkRepo:     new(MockChunkRepository),
		summaryRepo:   &memorySummaryRepo{},
		synthesisRepo: new(MockSynthesisRepository),
		source:        new(MockLiteratureSource),
		generator:     new(MockTextGenerator),
		assembler:     new(MockReportAssembler),
	}

	prompts := usecase.NewPromptBuilder()
	retryExec := newTestRetry()
	logger := newTestLogger()

	indexer := usecase.NewIndexArticleUsecase(
		f.articleRepo, f.chunkRepo, new(MockTransactionManager),
		domain.NewChunker(), encoder, retryExec, logger)
	retriever := usecase.NewRetrieveContextUsecase(f.chunkRepo, encoder, retryExec, logger)
	summarizer := usecase.NewSummarizeArticleUsecase(
		retriever, f.generator, prompts, retryExec,
		usecase.SummarizerConfig{TopK: 5, MaxContextChars: 6000, FallbackSummaryChars: 600, MaxTokens: 512},
		logger)
	synthesizer := usecase.NewSynthesizeRunUsecase(f.generator, prompts, retryExec, 1024, logger)

	f.uc = usecase.NewRunPipelineUsecase(
		f.runRepo, f.articleRepo, f.summaryRepo, f.synthesisRepo,
		f.source, indexer, summarizer, synthesizer, f.assembler,
		f.generator, prompts, retryExec,
		usecase.PipelineConfig{IndexConcurrency: 2, SummaryConcurrency: 2, QuickSummaryArticles: 3},
		logger)
	return f
}

// expectHappyPathStores registers the store interactions every
// successful run performs.
func (f *pipelineFixture) expectHappyPathStores(runID uuid.UUID, articles []domain.Article) {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.SourceID
	}

	f.runRepo.On("SetArticleIDs", mock.Anything, runID, ids).Return(nil)
	f.runRepo.On("SetQuickSummary", mock.Anything, runID, mock.Anything).Return(nil)
	f.runRepo.On("UpdateStatus", mock.Anything, runID, mock.Anything).
		Run(func(args mock.Arguments) {
			f.statuses = append(f.statuses, args.Get(2).(domain.RunStatus))
		}).Return(nil)
	f.runRepo.On("SetReportPath", mock.Anything, runID, mock.Anything).Return(nil)

	f.chunkRepo.On("CountInScope", mock.Anything, mock.Anything, "stub-embed").Return(0, nil)
	f.chunkRepo.On("ReplaceChunks", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.articleRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	for _, a := range articles {
		f.chunkRepo.On("Search", mock.Anything, mock.Anything, []string{a.SourceID}, "stub-embed", 5).
			Return([]domain.ScoredChunk{
				{Chunk: domain.Chunk{ArticleSourceID: a.SourceID, SequenceIndex: 0, Text: a.Abstract}, Score: 0.95},
			}, nil)
	}

	f.synthesisRepo.On("Insert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			f.synthesis = *(args.Get(1).(*domain.Synthesis))
		}).Return(nil)
	f.assembler.On("Assemble", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			f.report = args.Get(1).(domain.RunReport)
		}).Return("reports/report_test.md", nil)
}

// expectGeneration routes the shared generator mock by instruction:
// preview, per-article summaries and the synthesis each answer with a
// fixed text.
func (f *pipelineFixture) expectGeneration(synthesisText string) {
	f.generator.On("Complete", mock.Anything,
		mock.MatchedBy(func(s string) bool { return strings.Contains(s, "opening preview") }),
		mock.Anything, mock.Anything).Return("A quick look at the batch.", nil)
	f.generator.On("Complete", mock.Anything,
		mock.MatchedBy(func(s string) bool { return strings.Contains(s, "summarizing one scientific article") }),
		mock.Anything, mock.Anything).Return("A grounded summary.", nil)
	f.generator.On("Complete", mock.Anything,
		mock.MatchedBy(func(s string) bool { return strings.Contains(s, "cross-article synthesis") }),
		mock.Anything, mock.Anything).Return(synthesisText, nil)
}

func testArticles(ids ...string) []domain.Article {
	articles := make([]domain.Article, len(ids))
	for i, id := range ids {
		articles[i] = domain.Article{
			SourceID: id,
			Title:    "Study " + id,
			Abstract: "Findings reported for " + id + ".",
		}
	}
	return articles
}

// --- Scenarios ---

func TestPipeline_CompletesWithAllArticles(t *testing.T) {
	f := newPipelineFixture(&stubEncoder{})

	run := &domain.Run{
		ID:                    uuid.New(),
		Keyword:               "quantum topology",
		RequestedArticleCount: 10,
		Status:                domain.RunStatusCollecting,
	}
	articles := testArticles("2401.00001v1", "2401.00002v1", "2401.00003v1")

	f.source.On("Search", mock.Anything, "quantum topology", 10).Return(articles, nil)
	f.expectHappyPathStores(run.ID, articles)
	f.expectGeneration("Results in [2401.00001v1] and [2401.00002v1] extend [2401.00003v1].")
	f.articleRepo.On("GetBySourceIDs", mock.Anything, []string{"2401.00001v1", "2401.00002v1", "2401.00003v1"}).
		Return(articles, nil)

	err := f.uc.Execute(context.Background(), run)

	assert.NoError(t, err)
	assert.Equal(t, []domain.RunStatus{
		domain.RunStatusIndexing,
		domain.RunStatusSummarizing,
		domain.RunStatusSynthesizing,
		domain.RunStatusCompleted,
	}, f.statuses)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, "A quick look at the batch.", run.QuickSummary)
	assert.Equal(t, "reports/report_test.md", run.ReportPath)

	records := f.summaryRepo.all()
	assert.Len(t, records, 3)
	for _, s := range records {
		assert.Equal(t, domain.SummaryStatusSucceeded, s.Status)
		assert.Equal(t, "A grounded summary.", s.SummaryText)
	}

	assert.Equal(t, []string{"2401.00001v1", "2401.00002v1", "2401.00003v1"}, f.synthesis.CitedArticleIDs)
	assert.Len(t, f.report.Entries, 3)
	assert.Empty(t, f.report.Failures)
	f.chunkRepo.AssertNumberOfCalls(t, "ReplaceChunks", 3)
}

func TestPipeline_NoArticlesFound(t *testing.T) {
	f := newPipelineFixture(&stubEncoder{})

	run := &domain.Run{
		ID:                    uuid.New(),
		Keyword:               "nonexistent topic",
		RequestedArticleCount: 10,
		Status:                domain.RunStatusCollecting,
	}

	f.source.On("Search", mock.Anything, "nonexistent topic", 10).Return([]domain.Article{}, nil)

	err := f.uc.Execute(context.Background(), run)

	assert.EqualError(t, err, "no articles found")
	f.runRepo.AssertNotCalled(t, "SetArticleIDs", mock.Anything, mock.Anything, mock.Anything)
	f.runRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	f.chunkRepo.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
	f.generator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.summaryRepo.all())
}

func TestPipeline_EmbeddingFailureExcludesArticle(t *testing.T) {
	// Article three cannot be embedded; the run still completes with the
	// other four.
	f := newPipelineFixture(&stubEncoder{failSubstring: "Unembeddable"})

	run := &domain.Run{
		ID:                    uuid.New(),
		Keyword:               "stream analysis",
		RequestedArticleCount: 10,
		Status:                domain.RunStatusCollecting,
	}
	articles := testArticles("2401.00001v1", "2401.00002v1", "2401.00003v1", "2401.00004v1", "2401.00005v1")
	articles[2].Title = "Unembeddable Glyph Streams"

	survivorIDs := []string{"2401.00001v1", "2401.00002v1", "2401.00004v1", "2401.00005v1"}
	survivors := []domain.Article{articles[0], articles[1], articles[3], articles[4]}

	f.source.On("Search", mock.Anything, "stream analysis", 10).Return(articles, nil)
	f.expectHappyPathStores(run.ID, articles)
	f.expectGeneration("Across [2401.00001v1], [2401.00002v1], [2401.00004v1] and [2401.00005v1] a trend emerges.")
	f.articleRepo.On("GetBySourceIDs", mock.Anything, survivorIDs).Return(survivors, nil)

	err := f.uc.Execute(context.Background(), run)

	assert.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)

	records := f.summaryRepo.all()
	assert.Len(t, records, 4)
	for _, s := range records {
		assert.NotEqual(t, "2401.00003v1", s.ArticleSourceID)
	}

	assert.Equal(t, survivorIDs, f.synthesis.CitedArticleIDs)
	assert.Len(t, f.report.Entries, 4)
	if assert.Len(t, f.report.Failures, 1) {
		assert.Equal(t, "2401.00003v1", f.report.Failures[0].ArticleSourceID)
		assert.Equal(t, "indexing", f.report.Failures[0].Stage)
		assert.NotEmpty(t, f.report.Failures[0].Reason)
	}
	f.chunkRepo.AssertNumberOfCalls(t, "ReplaceChunks", 4)
}

func TestPipeline_CollectionFailure(t *testing.T) {
	f := newPipelineFixture(&stubEncoder{})

	run := &domain.Run{
		ID:                    uuid.New(),
		Keyword:               "flaky upstream",
		RequestedArticleCount: 10,
		Status:                domain.RunStatusCollecting,
	}

	f.source.On("Search", mock.Anything, "flaky upstream", 10).
		Return(nil, domain.NewCollectionError("search", errors.New("503 from upstream"), true))

	err := f.uc.Execute(context.Background(), run)

	assert.ErrorContains(t, err, "collection failed")
	// Transient collection errors are retried until attempts run out.
	f.source.AssertNumberOfCalls(t, "Search", 2)
	f.runRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	f.generator.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_CancelledRunRecordsPlainReason(t *testing.T) {
	f := newPipelineFixture(&stubEncoder{})

	run := &domain.Run{
		ID:                    uuid.New(),
		Keyword:               "any",
		RequestedArticleCount: 10,
		Status:                domain.RunStatusCollecting,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.uc.Execute(ctx, run)

	assert.EqualError(t, err, "cancelled")
}
