package repository

import (
	"context"
	"errors"
	"fmt"

	"litwatch/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type synthesisRepository struct {
	pool *pgxpool.Pool
}

// NewSynthesisRepository creates a new SynthesisRepository.
func NewSynthesisRepository(pool *pgxpool.Pool) domain.SynthesisRepository {
	return &synthesisRepository{pool: pool}
}

func (r *synthesisRepository) Insert(ctx context.Context, synthesis *domain.Synthesis) error {
	query := `
		INSERT INTO syntheses (run_id, keyword, synthesis_text, cited_article_ids)
		VALUES ($1, $2, $3, $4)
	`
	_, err := executor(ctx, r.pool).Exec(ctx, query,
		synthesis.RunID,
		synthesis.Keyword,
		synthesis.SynthesisText,
		synthesis.CitedArticleIDs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert synthesis: %w", err)
	}
	return nil
}

func (r *synthesisRepository) GetByRun(ctx context.Context, runID uuid.UUID) (*domain.Synthesis, error) {
	query := `
		SELECT run_id, keyword, synthesis_text, cited_article_ids, created_at
		FROM syntheses
		WHERE run_id = $1
	`
	var s domain.Synthesis
	err := executor(ctx, r.pool).QueryRow(ctx, query, runID).Scan(
		&s.RunID,
		&s.Keyword,
		&s.SynthesisText,
		&s.CitedArticleIDs,
		&s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan synthesis: %w", err)
	}
	return &s, nil
}
