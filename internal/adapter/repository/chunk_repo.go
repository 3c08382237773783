package repository

import (
	"context"
	"fmt"

	"litwatch/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type chunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(pool *pgxpool.Pool) domain.ChunkRepository {
	return &chunkRepository{pool: pool}
}

func (r *chunkRepository) ReplaceChunks(ctx context.Context, articleSourceID string, chunks []domain.Chunk) error {
	exec := executor(ctx, r.pool)

	_, err := exec.Exec(ctx, `DELETE FROM chunks WHERE article_source_id = $1`, articleSourceID)
	if err != nil {
		return fmt.Errorf("failed to delete stale chunks: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		rows[i] = []interface{}{
			articleSourceID,
			chunk.SequenceIndex,
			chunk.Text,
			chunk.Embedding,
			chunk.TokenCount,
			chunk.EmbeddingModel,
		}
	}

	_, err = exec.CopyFrom(
		ctx,
		pgx.Identifier{"chunks"},
		[]string{"article_source_id", "sequence_index", "text", "embedding", "token_count", "embedding_model"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}

	return nil
}

func (r *chunkRepository) CountInScope(ctx context.Context, scope []string, embeddingModel string) (int, error) {
	if len(scope) == 0 {
		return 0, nil
	}

	query := `
		SELECT COUNT(*)
		FROM chunks
		WHERE article_source_id = ANY($1)
		  AND embedding_model = $2
	`
	var count int
	err := executor(ctx, r.pool).QueryRow(ctx, query, scope, embeddingModel).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Search ranks chunks by cosine similarity. The <=> operator is pgvector
// cosine distance, so similarity is 1 - distance. Tie order must stay
// stable across calls, hence the secondary sort keys.
func (r *chunkRepository) Search(ctx context.Context, queryVector []float32, scope []string, embeddingModel string, limit int) ([]domain.ScoredChunk, error) {
	if len(scope) == 0 || limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT article_source_id, sequence_index, text, token_count, embedding_model, created_at,
		       1 - (embedding <=> $1::vector) AS score
		FROM chunks
		WHERE article_source_id = ANY($2)
		  AND embedding_model = $3
		ORDER BY score DESC, sequence_index ASC, article_source_id ASC
		LIMIT $4
	`
	rows, err := executor(ctx, r.pool).Query(ctx, query, pgvector.NewVector(queryVector), scope, embeddingModel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		var score float64
		err := rows.Scan(
			&sc.Chunk.ArticleSourceID,
			&sc.Chunk.SequenceIndex,
			&sc.Chunk.Text,
			&sc.Chunk.TokenCount,
			&sc.Chunk.EmbeddingModel,
			&sc.Chunk.CreatedAt,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scored chunk: %w", err)
		}
		sc.Score = float32(score)
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}
