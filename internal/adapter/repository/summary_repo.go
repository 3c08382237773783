package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"litwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type summaryRepository struct {
	pool *pgxpool.Pool
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(pool *pgxpool.Pool) domain.SummaryRepository {
	return &summaryRepository{pool: pool}
}

func (r *summaryRepository) Insert(ctx context.Context, summary *domain.Summary) error {
	refsBytes, err := json.Marshal(summary.ContextChunkRefs)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk refs: %w", err)
	}

	query := `
		INSERT INTO summaries (run_id, article_source_id, summary_text, context_chunk_refs, status, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = executor(ctx, r.pool).Exec(ctx, query,
		summary.RunID,
		summary.ArticleSourceID,
		summary.SummaryText,
		refsBytes,
		summary.Status,
		summary.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

func (r *summaryRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.Summary, error) {
	query := `
		SELECT run_id, article_source_id, summary_text, context_chunk_refs, status, error_detail, created_at
		FROM summaries
		WHERE run_id = $1
		ORDER BY article_source_id ASC
	`
	rows, err := executor(ctx, r.pool).Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.Summary
	for rows.Next() {
		var s domain.Summary
		var refsBytes []byte
		err := rows.Scan(
			&s.RunID,
			&s.ArticleSourceID,
			&s.SummaryText,
			&refsBytes,
			&s.Status,
			&s.ErrorDetail,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		if err := json.Unmarshal(refsBytes, &s.ContextChunkRefs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chunk refs: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return summaries, nil
}
