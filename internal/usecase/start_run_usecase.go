package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"litwatch/internal/domain"

	"github.com/google/uuid"
)

// Bounds on the number of articles one run may request.
const (
	MinArticlesPerRun = 3
	MaxArticlesPerRun = 20
)

// StartRunInput carries a run request from the API or the CLI.
type StartRunInput struct {
	Keyword string
	// MaxArticles zero means "use the configured default".
	MaxArticles int
}

// StartRunUsecase validates a run request and enqueues it as a pending
// run for the worker.
type StartRunUsecase interface {
	Execute(ctx context.Context, input StartRunInput) (*domain.Run, error)
}

type startRunUsecase struct {
	runRepo            domain.RunRepository
	defaultMaxArticles int
	logger             *slog.Logger
}

// NewStartRunUsecase creates the run intake usecase.
func NewStartRunUsecase(runRepo domain.RunRepository, defaultMaxArticles int, logger *slog.Logger) StartRunUsecase {
	return &startRunUsecase{
		runRepo:            runRepo,
		defaultMaxArticles: defaultMaxArticles,
		logger:             logger,
	}
}

func (u *startRunUsecase) Execute(ctx context.Context, input StartRunInput) (*domain.Run, error) {
	keyword := strings.TrimSpace(input.Keyword)
	if keyword == "" {
		return nil, domain.NewValidationError("run.start",
			fmt.Errorf("keyword must not be blank"))
	}

	maxArticles := input.MaxArticles
	if maxArticles == 0 {
		maxArticles = u.defaultMaxArticles
	}
	if maxArticles < MinArticlesPerRun || maxArticles > MaxArticlesPerRun {
		return nil, domain.NewValidationError("run.start",
			fmt.Errorf("max_articles must be between %d and %d, got %d",
				MinArticlesPerRun, MaxArticlesPerRun, input.MaxArticles))
	}

	run := &domain.Run{
		ID:                    uuid.New(),
		Keyword:               keyword,
		RequestedArticleCount: maxArticles,
		Status:                domain.RunStatusPending,
	}
	if err := u.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	// Re-read so the caller sees store-assigned timestamps.
	created, err := u.runRepo.Get(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load created run: %w", err)
	}
	if created == nil {
		return nil, domain.NewStoreError("run.start",
			fmt.Errorf("run %s vanished after insert", run.ID))
	}

	u.logger.Info("run_enqueued",
		slog.String("run_id", created.ID.String()),
		slog.String("keyword", created.Keyword),
		slog.Int("max_articles", created.RequestedArticleCount))
	return created, nil
}
