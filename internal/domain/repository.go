package domain

import (
	"context"

	"github.com/google/uuid"
)

// ArticleRepository manages ingested article records.
type ArticleRepository interface {
	// GetBySourceID retrieves an article by its source id.
	// Returns nil, nil if not found.
	GetBySourceID(ctx context.Context, sourceID string) (*Article, error)

	// GetBySourceIDs retrieves the articles for the given ids, ordered
	// by source id ascending. Unknown ids are skipped.
	GetBySourceIDs(ctx context.Context, sourceIDs []string) ([]Article, error)

	// Upsert stores an article record. Existing rows are left untouched
	// except for refreshed metadata; articles are immutable in content.
	Upsert(ctx context.Context, article *Article) error
}

// ChunkRepository manages chunk storage and similarity search.
type ChunkRepository interface {
	// ReplaceChunks atomically replaces the chunk set of one article.
	// Callers run it inside a transaction so a crash mid-write never
	// leaves a partial chunk set visible.
	ReplaceChunks(ctx context.Context, articleSourceID string, chunks []Chunk) error

	// CountInScope returns how many chunks the given articles hold under
	// the given embedding model. Zero for an article means it has never
	// been indexed with that model.
	CountInScope(ctx context.Context, scope []string, embeddingModel string) (int, error)

	// Search returns the chunks most similar to queryVector among the
	// scoped articles, scored by cosine similarity descending. Ties
	// break by ascending sequence index, then article source id. Only
	// chunks embedded with embeddingModel are considered.
	Search(ctx context.Context, queryVector []float32, scope []string, embeddingModel string, limit int) ([]ScoredChunk, error)
}

// RunRepository manages run lifecycle rows, which double as the work
// queue between the API and the pipeline worker.
type RunRepository interface {
	// Create inserts a new run in pending status.
	Create(ctx context.Context, run *Run) error

	// Get retrieves a run by id. Returns nil, nil if not found.
	Get(ctx context.Context, id uuid.UUID) (*Run, error)

	// AcquireNextPending claims the oldest pending run and moves it to
	// collecting, skipping runs locked by concurrent workers.
	// Returns nil, nil when no pending run exists.
	AcquireNextPending(ctx context.Context) (*Run, error)

	// UpdateStatus advances the run state machine. Illegal transitions
	// fail with a store error rather than corrupting the lifecycle.
	UpdateStatus(ctx context.Context, id uuid.UUID, to RunStatus) error

	// MarkFailed moves the run to failed with a human-readable reason.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// SetArticleIDs records the collected article ids on the run.
	SetArticleIDs(ctx context.Context, id uuid.UUID, articleIDs []string) error

	// SetQuickSummary records the early preview text on the run.
	SetQuickSummary(ctx context.Context, id uuid.UUID, text string) error

	// SetReportPath records the assembled report artifact path.
	SetReportPath(ctx context.Context, id uuid.UUID, path string) error
}

// SummaryRepository persists per-article summary records.
type SummaryRepository interface {
	// Insert writes one summary record. At most one record exists per
	// (run, article); a duplicate insert fails.
	Insert(ctx context.Context, summary *Summary) error

	// ListByRun returns the run's summaries ordered by article source
	// id ascending.
	ListByRun(ctx context.Context, runID uuid.UUID) ([]Summary, error)
}

// SynthesisRepository persists the cross-article synthesis of a run.
type SynthesisRepository interface {
	// Insert writes the run's synthesis record.
	Insert(ctx context.Context, synthesis *Synthesis) error

	// GetByRun retrieves the synthesis for a run.
	// Returns nil, nil if not found.
	GetByRun(ctx context.Context, runID uuid.UUID) (*Synthesis, error)
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
