package worker

import (
	"context"
	"log/slog"
	"time"

	"litwatch/internal/domain"
	"litwatch/internal/usecase"

	"github.com/google/uuid"
)

const (
	initialBackoff    = 1 * time.Second
	maxBackoff        = 5 * time.Minute
	markFailedTimeout = 10 * time.Second
)

// RunWorker polls the run queue and drives each acquired run through the
// pipeline. One worker processes one run at a time; scale comes from
// running more instances, which AcquireNextPending's row locking keeps
// safe.
type RunWorker struct {
	runRepo      domain.RunRepository
	pipeline     usecase.RunPipelineUsecase
	pollInterval time.Duration
	runTimeout   time.Duration
	logger       *slog.Logger
	stopChan     chan struct{}
	backoff      time.Duration
}

func NewRunWorker(
	runRepo domain.RunRepository,
	pipeline usecase.RunPipelineUsecase,
	pollInterval time.Duration,
	runTimeout time.Duration,
	logger *slog.Logger,
) *RunWorker {
	return &RunWorker{
		runRepo:      runRepo,
		pipeline:     pipeline,
		pollInterval: pollInterval,
		runTimeout:   runTimeout,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

func (w *RunWorker) Start() {
	w.logger.Info("worker_started",
		slog.Duration("poll_interval", w.pollInterval),
		slog.Duration("run_timeout", w.runTimeout))
	go w.run()
}

// Stop ends the poll loop. A run already executing finishes or times
// out on its own; it is not interrupted mid-flight.
func (w *RunWorker) Stop() {
	w.logger.Info("worker_stopping")
	close(w.stopChan)
}

func (w *RunWorker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processNext()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(w.pollInterval)
			}
		}
	}
}

func (w *RunWorker) processNext() {
	ctx, cancel := context.WithTimeout(context.Background(), w.runTimeout)
	defer cancel()

	run, err := w.runRepo.AcquireNextPending(ctx)
	if err != nil {
		// The queue itself is unreachable; back off instead of hammering.
		w.backoff = nextBackoff(w.backoff)
		w.logger.Error("run_acquire_failed",
			slog.String("error", err.Error()),
			slog.Duration("backoff", w.backoff))
		return
	}
	w.backoff = 0
	if run == nil {
		return // nothing pending
	}

	w.logger.Info("run_acquired",
		slog.String("run_id", run.ID.String()),
		slog.String("keyword", run.Keyword))

	if err := w.pipeline.Execute(ctx, run); err != nil {
		w.markFailed(ctx, run.ID, err.Error())
	}
}

// markFailed records the failure reason on the run. It must succeed
// even when the run's own context already expired, so it detaches from
// that cancellation.
func (w *RunWorker) markFailed(ctx context.Context, id uuid.UUID, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markFailedTimeout)
	defer cancel()

	w.logger.Warn("run_failed",
		slog.String("run_id", id.String()),
		slog.String("reason", reason))
	if err := w.runRepo.MarkFailed(ctx, id, reason); err != nil {
		w.logger.Error("run_mark_failed_error",
			slog.String("run_id", id.String()),
			slog.String("error", err.Error()))
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
