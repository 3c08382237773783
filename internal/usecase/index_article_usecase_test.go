package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"litwatch/internal/domain"
	"litwatch/internal/retry"
	"litwatch/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockArticleRepository struct {
	mock.Mock
}

func (m *MockArticleRepository) GetBySourceID(ctx context.Context, sourceID string) (*domain.Article, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Article), args.Error(1)
}

func (m *MockArticleRepository) GetBySourceIDs(ctx context.Context, sourceIDs []string) ([]domain.Article, error) {
	args := m.Called(ctx, sourceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Article), args.Error(1)
}

func (m *MockArticleRepository) Upsert(ctx context.Context, article *domain.Article) error {
	args := m.Called(ctx, article)
	return args.Error(0)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) ReplaceChunks(ctx context.Context, articleSourceID string, chunks []domain.Chunk) error {
	args := m.Called(ctx, articleSourceID, chunks)
	return args.Error(0)
}

func (m *MockChunkRepository) CountInScope(ctx context.Context, scope []string, embeddingModel string) (int, error) {
	args := m.Called(ctx, scope, embeddingModel)
	return args.Int(0), args.Error(1)
}

func (m *MockChunkRepository) Search(ctx context.Context, queryVector []float32, scope []string, embeddingModel string, limit int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, queryVector, scope, embeddingModel, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Directly execute the function
	return fn(ctx)
}

type MockVectorEncoder struct {
	mock.Mock
}

func (m *MockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockVectorEncoder) Model() string {
	return "mock-embed"
}

// --- Helpers shared across the package's tests ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestRetry() *retry.Executor {
	return retry.NewExecutor(retry.NewPolicy(2, time.Millisecond))
}

func newIndexUsecase(articleRepo *MockArticleRepository, chunkRepo *MockChunkRepository, encoder *MockVectorEncoder) usecase.IndexArticleUsecase {
	return usecase.NewIndexArticleUsecase(
		articleRepo, chunkRepo, new(MockTransactionManager),
		domain.NewChunker(), encoder, newTestRetry(), newTestLogger(),
	)
}

// --- Tests ---

func TestIndexArticle_NewArticle(t *testing.T) {
	mockArticleRepo := new(MockArticleRepository)
	mockChunkRepo := new(MockChunkRepository)
	mockEncoder := new(MockVectorEncoder)

	uc := newIndexUsecase(mockArticleRepo, mockChunkRepo, mockEncoder)

	ctx := context.Background()
	article := domain.Article{
		SourceID: "2401.12345v2",
		Title:    "Quantum Error Correction Advances",
		Abstract: "We demonstrate improved error rates.",
	}

	mockChunkRepo.On("CountInScope", ctx, []string{"2401.12345v2"}, "mock-embed").
		Return(0, nil).Once()

	// Title + abstract fit one window, so one chunk and one embedding.
	mockEncoder.On("Encode", ctx, mock.MatchedBy(func(texts []string) bool {
		return len(texts) == 1
	})).Return([][]float32{{0.1, 0.2, 0.3}}, nil).Once()

	mockArticleRepo.On("Upsert", ctx, mock.MatchedBy(func(a *domain.Article) bool {
		return a.SourceID == "2401.12345v2"
	})).Return(nil).Once()

	mockChunkRepo.On("ReplaceChunks", ctx, "2401.12345v2", mock.MatchedBy(func(chunks []domain.Chunk) bool {
		return len(chunks) == 1 &&
			chunks[0].SequenceIndex == 0 &&
			chunks[0].EmbeddingModel == "mock-embed"
	})).Return(nil).Once()

	refs, err := uc.Index(ctx, article)

	assert.NoError(t, err)
	assert.Equal(t, []domain.ChunkRef{{ArticleSourceID: "2401.12345v2", SequenceIndex: 0}}, refs)
	mockArticleRepo.AssertExpectations(t)
	mockChunkRepo.AssertExpectations(t)
	mockEncoder.AssertExpectations(t)
}

func TestIndexArticle_AlreadyStoredSkipsEncoder(t *testing.T) {
	mockArticleRepo := new(MockArticleRepository)
	mockChunkRepo := new(MockChunkRepository)
	mockEncoder := new(MockVectorEncoder)

	uc := newIndexUsecase(mockArticleRepo, mockChunkRepo, mockEncoder)

	ctx := context.Background()
	article := domain.Article{SourceID: "2401.00001v1", Title: "Stored Article"}

	// The store already holds three chunks for this article.
	mockChunkRepo.On("CountInScope", ctx, []string{"2401.00001v1"}, "mock-embed").
		Return(3, nil).Once()

	refs, err := uc.Index(ctx, article)

	assert.NoError(t, err)
	assert.Equal(t, []domain.ChunkRef{
		{ArticleSourceID: "2401.00001v1", SequenceIndex: 0},
		{ArticleSourceID: "2401.00001v1", SequenceIndex: 1},
		{ArticleSourceID: "2401.00001v1", SequenceIndex: 2},
	}, refs)
	mockEncoder.AssertNotCalled(t, "Encode", mock.Anything, mock.Anything)
	mockChunkRepo.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)

	// A repeat hits the in-process cache: CountInScope stays at one call.
	refsAgain, err := uc.Index(ctx, article)
	assert.NoError(t, err)
	assert.Equal(t, refs, refsAgain)
	mockChunkRepo.AssertExpectations(t)
}

func TestIndexArticle_EncoderFailurePersistsNothing(t *testing.T) {
	mockArticleRepo := new(MockArticleRepository)
	mockChunkRepo := new(MockChunkRepository)
	mockEncoder := new(MockVectorEncoder)

	uc := newIndexUsecase(mockArticleRepo, mockChunkRepo, mockEncoder)

	ctx := context.Background()
	article := domain.Article{SourceID: "2401.00002v1", Title: "Doomed Article", Abstract: "Some text."}

	mockChunkRepo.On("CountInScope", ctx, []string{"2401.00002v1"}, "mock-embed").
		Return(0, nil)
	mockEncoder.On("Encode", ctx, mock.Anything).
		Return(nil, domain.NewEmbeddingError("encode", errors.New("model rejected input"), false))

	refs, err := uc.Index(ctx, article)

	assert.Error(t, err)
	assert.Equal(t, domain.ErrorKindEmbedding, domain.KindOf(err))
	assert.Nil(t, refs)
	// Permanent errors are not retried.
	mockEncoder.AssertNumberOfCalls(t, "Encode", 1)
	mockArticleRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	mockChunkRepo.AssertNotCalled(t, "ReplaceChunks", mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexArticle_TransientEncoderFailureIsRetried(t *testing.T) {
	mockArticleRepo := new(MockArticleRepository)
	mockChunkRepo := new(MockChunkRepository)
	mockEncoder := new(MockVectorEncoder)

	uc := newIndexUsecase(mockArticleRepo, mockChunkRepo, mockEncoder)

	ctx := context.Background()
	article := domain.Article{SourceID: "2401.00003v1", Title: "Flaky Article"}

	mockChunkRepo.On("CountInScope", ctx, []string{"2401.00003v1"}, "mock-embed").
		Return(0, nil)
	mockEncoder.On("Encode", ctx, mock.Anything).
		Return(nil, domain.NewEmbeddingError("encode", errors.New("upstream overloaded"), true)).Once()
	mockEncoder.On("Encode", ctx, mock.Anything).
		Return([][]float32{{0.5}}, nil).Once()
	mockArticleRepo.On("Upsert", ctx, mock.Anything).Return(nil)
	mockChunkRepo.On("ReplaceChunks", ctx, "2401.00003v1", mock.Anything).Return(nil)

	refs, err := uc.Index(ctx, article)

	assert.NoError(t, err)
	assert.Len(t, refs, 1)
	mockEncoder.AssertNumberOfCalls(t, "Encode", 2)
}

func TestIndexArticle_EmptySourceIDRejected(t *testing.T) {
	uc := newIndexUsecase(new(MockArticleRepository), new(MockChunkRepository), new(MockVectorEncoder))

	_, err := uc.Index(context.Background(), domain.Article{Title: "No identity"})

	assert.Error(t, err)
	assert.Equal(t, domain.ErrorKindValidation, domain.KindOf(err))
}
