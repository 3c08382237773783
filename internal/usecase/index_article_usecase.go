package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"litwatch/internal/domain"
	"litwatch/internal/retry"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pgvector/pgvector-go"
)

// recentlyIndexedCacheSize bounds the in-process cache of article ids
// already indexed under the current embedding model.
const recentlyIndexedCacheSize = 1024

// IndexArticleUsecase chunks, embeds and stores one article.
type IndexArticleUsecase interface {
	// Index is idempotent: re-indexing an already stored article returns
	// its existing chunk refs without calling the encoder.
	Index(ctx context.Context, article domain.Article) ([]domain.ChunkRef, error)
}

type indexArticleUsecase struct {
	articleRepo domain.ArticleRepository
	chunkRepo   domain.ChunkRepository
	txManager   domain.TransactionManager
	chunker     domain.Chunker
	encoder     domain.VectorEncoder
	retryExec   *retry.Executor
	recent      *lru.Cache[string, []domain.ChunkRef]
	logger      *slog.Logger
}

// NewIndexArticleUsecase wires the indexing collaborators together.
func NewIndexArticleUsecase(
	articleRepo domain.ArticleRepository,
	chunkRepo domain.ChunkRepository,
	txManager domain.TransactionManager,
	chunker domain.Chunker,
	encoder domain.VectorEncoder,
	retryExec *retry.Executor,
	logger *slog.Logger,
) IndexArticleUsecase {
	recent, _ := lru.New[string, []domain.ChunkRef](recentlyIndexedCacheSize)
	return &indexArticleUsecase{
		articleRepo: articleRepo,
		chunkRepo:   chunkRepo,
		txManager:   txManager,
		chunker:     chunker,
		encoder:     encoder,
		retryExec:   retryExec,
		recent:      recent,
		logger:      logger,
	}
}

func (u *indexArticleUsecase) Index(ctx context.Context, article domain.Article) ([]domain.ChunkRef, error) {
	sourceID := article.SourceID
	if strings.TrimSpace(sourceID) == "" {
		return nil, domain.NewValidationError("index.article", errors.New("article source id is empty"))
	}

	if refs, ok := u.recent.Get(sourceID); ok {
		return refs, nil
	}

	count, err := u.chunkRepo.CountInScope(ctx, []string{sourceID}, u.encoder.Model())
	if err != nil {
		return nil, fmt.Errorf("failed to check existing chunks: %w", err)
	}
	if count > 0 {
		// Stored chunk sets are always dense from sequence index zero,
		// so the refs can be rebuilt from the count alone.
		refs := sequentialRefs(sourceID, count)
		u.recent.Add(sourceID, refs)
		u.logger.Info("index_skipped",
			slog.String("article_id", sourceID),
			slog.Int("chunk_count", count))
		return refs, nil
	}

	textChunks, err := u.chunker.Chunk(article.EmbeddingText())
	if err != nil {
		return nil, fmt.Errorf("failed to chunk article %s: %w", sourceID, err)
	}

	texts := make([]string, len(textChunks))
	for i, tc := range textChunks {
		texts[i] = tc.Text
	}

	var embeddings [][]float32
	err = u.retryExec.Execute(ctx, func() error {
		var encodeErr error
		embeddings, encodeErr = u.encoder.Encode(ctx, texts)
		return encodeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chunks for %s: %w", sourceID, err)
	}
	if len(embeddings) != len(texts) {
		return nil, domain.NewEmbeddingError("index.encode",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings)), false)
	}

	now := time.Now()
	chunks := make([]domain.Chunk, len(textChunks))
	for i, tc := range textChunks {
		chunks[i] = domain.Chunk{
			ArticleSourceID: sourceID,
			SequenceIndex:   tc.SequenceIndex,
			Text:            tc.Text,
			Embedding:       pgvector.NewVector(embeddings[i]),
			TokenCount:      tc.TokenCount,
			EmbeddingModel:  u.encoder.Model(),
			CreatedAt:       now,
		}
	}

	// Article metadata and its full chunk set land atomically; a crash
	// mid-index never leaves a partially indexed article visible.
	err = u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		if err := u.articleRepo.Upsert(ctx, &article); err != nil {
			return fmt.Errorf("failed to upsert article: %w", err)
		}
		if err := u.chunkRepo.ReplaceChunks(ctx, sourceID, chunks); err != nil {
			return fmt.Errorf("failed to replace chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	refs := make([]domain.ChunkRef, len(chunks))
	for i, c := range chunks {
		refs[i] = c.Ref()
	}
	u.recent.Add(sourceID, refs)

	u.logger.Info("index_completed",
		slog.String("article_id", sourceID),
		slog.Int("chunk_count", len(chunks)))
	return refs, nil
}

func sequentialRefs(sourceID string, count int) []domain.ChunkRef {
	refs := make([]domain.ChunkRef, count)
	for i := range refs {
		refs[i] = domain.ChunkRef{ArticleSourceID: sourceID, SequenceIndex: i}
	}
	return refs
}
