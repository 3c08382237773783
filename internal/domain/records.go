package domain

import (
	"time"

	"github.com/google/uuid"
)

// SummaryStatus is the terminal outcome of summarizing one article.
type SummaryStatus string

const (
	SummaryStatusSucceeded SummaryStatus = "succeeded"
	SummaryStatusFailed    SummaryStatus = "failed"
)

// Summary is the per-article summarization record of a run. At most one
// exists per (RunID, ArticleSourceID) and it is immutable once written.
// A failed summary still carries usable text (the truncated abstract).
type Summary struct {
	RunID            uuid.UUID
	ArticleSourceID  string
	SummaryText      string
	ContextChunkRefs []ChunkRef
	Status           SummaryStatus
	ErrorDetail      string
	CreatedAt        time.Time
}

// Synthesis is the cross-article overview of a run, produced once after
// every summary reached a terminal status. CitedArticleIDs contains only
// identifiers that exist among the run's summarized articles.
type Synthesis struct {
	RunID           uuid.UUID
	Keyword         string
	SynthesisText   string
	CitedArticleIDs []string
	CreatedAt       time.Time
}

// ArticleFailure records an article excluded from a stage, with the
// stage it failed in and a human-readable reason.
type ArticleFailure struct {
	ArticleSourceID string
	Stage           string
	Reason          string
}

// ReportEntry pairs an article with its summary for report assembly.
type ReportEntry struct {
	Article Article
	Summary Summary
}

// RunReport is the structured document handed to the report-assembly
// collaborator. Entries are ordered by article source id; Failures
// enumerates every article that did not make it to a summary.
type RunReport struct {
	Run       Run
	Entries   []ReportEntry
	Failures  []ArticleFailure
	Synthesis Synthesis
}
