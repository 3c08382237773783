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

type RunRepository struct {
	db *pgxpool.Pool
}

func NewRunRepository(db *pgxpool.Pool) domain.RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, keyword, requested_article_count, status, article_ids, quick_summary, failure_reason, report_path, created_at, updated_at`

func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID,
		&run.Keyword,
		&run.RequestedArticleCount,
		&run.Status,
		&run.ArticleIDs,
		&run.QuickSummary,
		&run.FailureReason,
		&run.ReportPath,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO runs (id, keyword, requested_article_count, status)
		VALUES ($1, $2, $3, $4)
	`
	_, err := executor(ctx, r.db).Exec(ctx, query,
		run.ID,
		run.Keyword,
		run.RequestedArticleCount,
		run.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE id = $1
	`
	run, err := scanRun(executor(ctx, r.db).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return run, nil
}

// AcquireNextPending claims the oldest pending run and moves it to
// collecting in one statement, so concurrent workers never pick up the
// same run.
func (r *RunRepository) AcquireNextPending(ctx context.Context) (*domain.Run, error) {
	cteQuery := `
		WITH next_run AS (
			SELECT id
			FROM runs
			WHERE status = $1
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE runs
		SET status = $2, updated_at = now()
		FROM next_run
		WHERE runs.id = next_run.id
		RETURNING runs.id, runs.keyword, runs.requested_article_count, runs.status, runs.article_ids, runs.quick_summary, runs.failure_reason, runs.report_path, runs.created_at, runs.updated_at
	`

	run, err := scanRun(r.db.QueryRow(ctx, cteQuery, domain.RunStatusPending, domain.RunStatusCollecting))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire next run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to domain.RunStatus) error {
	sources := domain.TransitionSources(to)
	froms := make([]string, len(sources))
	for i, s := range sources {
		froms[i] = string(s)
	}

	query := `
		UPDATE runs
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`
	tag, err := executor(ctx, r.db).Exec(ctx, query, id, to, froms)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewStoreError("run.update_status",
			fmt.Errorf("run %s: no legal transition to %s", id, to))
	}
	return nil
}

func (r *RunRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE runs
		SET status = $2, failure_reason = $3, updated_at = now()
		WHERE id = $1 AND status NOT IN ($4, $5)
	`
	tag, err := executor(ctx, r.db).Exec(ctx, query, id,
		domain.RunStatusFailed, reason, domain.RunStatusCompleted, domain.RunStatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewStoreError("run.mark_failed",
			fmt.Errorf("run %s: already terminal", id))
	}
	return nil
}

func (r *RunRepository) SetArticleIDs(ctx context.Context, id uuid.UUID, articleIDs []string) error {
	return r.setColumn(ctx, id, "article_ids", articleIDs)
}

func (r *RunRepository) SetQuickSummary(ctx context.Context, id uuid.UUID, text string) error {
	return r.setColumn(ctx, id, "quick_summary", text)
}

func (r *RunRepository) SetReportPath(ctx context.Context, id uuid.UUID, path string) error {
	return r.setColumn(ctx, id, "report_path", path)
}

func (r *RunRepository) setColumn(ctx context.Context, id uuid.UUID, column string, value interface{}) error {
	query := fmt.Sprintf(`UPDATE runs SET %s = $2, updated_at = now() WHERE id = $1`, column)
	tag, err := executor(ctx, r.db).Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to set run %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewStoreError("run.set_"+column, fmt.Errorf("run %s: not found", id))
	}
	return nil
}
