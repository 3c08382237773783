package repository

import (
	"context"
	"errors"
	"fmt"

	"litwatch/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type articleRepository struct {
	pool *pgxpool.Pool
}

// NewArticleRepository creates a new ArticleRepository.
func NewArticleRepository(pool *pgxpool.Pool) domain.ArticleRepository {
	return &articleRepository{pool: pool}
}

const articleColumns = `source_id, title, authors, abstract, categories, published_at, source_url, pdf_url, created_at`

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var a domain.Article
	err := row.Scan(
		&a.SourceID,
		&a.Title,
		&a.Authors,
		&a.Abstract,
		&a.Categories,
		&a.PublishedAt,
		&a.SourceURL,
		&a.PDFURL,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *articleRepository) GetBySourceID(ctx context.Context, sourceID string) (*domain.Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE source_id = $1
	`
	article, err := scanArticle(executor(ctx, r.pool).QueryRow(ctx, query, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}
	return article, nil
}

func (r *articleRepository) GetBySourceIDs(ctx context.Context, sourceIDs []string) ([]domain.Article, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + articleColumns + `
		FROM articles
		WHERE source_id = ANY($1)
		ORDER BY source_id ASC
	`
	rows, err := executor(ctx, r.pool).Query(ctx, query, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return articles, nil
}

func (r *articleRepository) Upsert(ctx context.Context, article *domain.Article) error {
	query := `
		INSERT INTO articles (source_id, title, authors, abstract, categories, published_at, source_url, pdf_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_id) DO UPDATE SET
			title = EXCLUDED.title,
			authors = EXCLUDED.authors,
			abstract = EXCLUDED.abstract,
			categories = EXCLUDED.categories,
			published_at = EXCLUDED.published_at,
			source_url = EXCLUDED.source_url,
			pdf_url = EXCLUDED.pdf_url
	`
	_, err := executor(ctx, r.pool).Exec(ctx, query,
		article.SourceID,
		article.Title,
		article.Authors,
		article.Abstract,
		article.Categories,
		article.PublishedAt,
		article.SourceURL,
		article.PDFURL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}
	return nil
}
