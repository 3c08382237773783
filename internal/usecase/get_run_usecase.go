package usecase

import (
	"context"
	"fmt"

	"litwatch/internal/domain"

	"github.com/google/uuid"
)

// RunDetails is a run plus the records that exist once it completed.
type RunDetails struct {
	Run       domain.Run
	Summaries []domain.Summary
	Synthesis *domain.Synthesis
}

// GetRunUsecase reads a run and, for completed runs, its summaries and
// synthesis.
type GetRunUsecase interface {
	// Execute returns nil, nil when the run does not exist.
	Execute(ctx context.Context, id uuid.UUID) (*RunDetails, error)
}

type getRunUsecase struct {
	runRepo       domain.RunRepository
	summaryRepo   domain.SummaryRepository
	synthesisRepo domain.SynthesisRepository
}

// NewGetRunUsecase creates the run lookup usecase.
func NewGetRunUsecase(
	runRepo domain.RunRepository,
	summaryRepo domain.SummaryRepository,
	synthesisRepo domain.SynthesisRepository,
) GetRunUsecase {
	return &getRunUsecase{
		runRepo:       runRepo,
		summaryRepo:   summaryRepo,
		synthesisRepo: synthesisRepo,
	}
}

func (u *getRunUsecase) Execute(ctx context.Context, id uuid.UUID) (*RunDetails, error) {
	run, err := u.runRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, nil
	}

	details := &RunDetails{Run: *run}
	if run.Status != domain.RunStatusCompleted {
		return details, nil
	}

	details.Summaries, err = u.summaryRepo.ListByRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}
	details.Synthesis, err = u.synthesisRepo.GetByRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load synthesis: %w", err)
	}
	return details, nil
}
