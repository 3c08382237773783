package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"litwatch/internal/domain"
	"litwatch/internal/retry"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// queryCacheSize bounds the query-embedding cache. Within one run the
	// same query never repeats, but concurrent runs on the same keyword
	// share entries.
	queryCacheSize = 256
	queryCacheTTL  = 10 * time.Minute
)

// RetrieveContextUsecase finds the stored chunks most similar to a query
// within a set of articles.
type RetrieveContextUsecase interface {
	// Retrieve returns up to k chunks ordered by similarity descending.
	// An empty scope yields an empty result without touching the store.
	Retrieve(ctx context.Context, query string, scope []string, k int) ([]domain.Chunk, error)
}

type retrieveContextUsecase struct {
	chunkRepo  domain.ChunkRepository
	encoder    domain.VectorEncoder
	retryExec  *retry.Executor
	queryCache *expirable.LRU[string, []float32]
	logger     *slog.Logger
}

// NewRetrieveContextUsecase creates a retriever backed by the chunk
// store and the vector encoder.
func NewRetrieveContextUsecase(
	chunkRepo domain.ChunkRepository,
	encoder domain.VectorEncoder,
	retryExec *retry.Executor,
	logger *slog.Logger,
) RetrieveContextUsecase {
	return &retrieveContextUsecase{
		chunkRepo:  chunkRepo,
		encoder:    encoder,
		retryExec:  retryExec,
		queryCache: expirable.NewLRU[string, []float32](queryCacheSize, nil, queryCacheTTL),
		logger:     logger,
	}
}

func (u *retrieveContextUsecase) Retrieve(ctx context.Context, query string, scope []string, k int) ([]domain.Chunk, error) {
	if len(scope) == 0 || k <= 0 {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("retrieve.query", errors.New("query is empty"))
	}

	queryVector, err := u.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := u.chunkRepo.Search(ctx, queryVector, scope, u.encoder.Model(), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	// The store already orders results; re-apply the ordering here so
	// callers never depend on driver-specific row order.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Chunk.SequenceIndex != scored[j].Chunk.SequenceIndex {
			return scored[i].Chunk.SequenceIndex < scored[j].Chunk.SequenceIndex
		}
		return scored[i].Chunk.ArticleSourceID < scored[j].Chunk.ArticleSourceID
	})

	chunks := make([]domain.Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = s.Chunk
	}

	u.logger.Debug("retrieval_completed",
		slog.Int("scope_size", len(scope)),
		slog.Int("chunk_count", len(chunks)))
	return chunks, nil
}

func (u *retrieveContextUsecase) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if vec, ok := u.queryCache.Get(query); ok {
		return vec, nil
	}

	var embeddings [][]float32
	err := u.retryExec.Execute(ctx, func() error {
		var encodeErr error
		embeddings, encodeErr = u.encoder.Encode(ctx, []string{query})
		return encodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, domain.NewEmbeddingError("retrieve.encode",
			fmt.Errorf("expected 1 embedding, got %d", len(embeddings)), false)
	}

	u.queryCache.Add(query, embeddings[0])
	return embeddings[0], nil
}
