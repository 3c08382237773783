package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a monitoring run.
type RunStatus string

const (
	// RunStatusPending marks a run accepted by the API but not yet
	// picked up by a worker.
	RunStatusPending RunStatus = "pending"
	// RunStatusCollecting marks the literature-source stage.
	RunStatusCollecting RunStatus = "collecting"
	// RunStatusIndexing marks the chunk/embed/store stage.
	RunStatusIndexing RunStatus = "indexing"
	// RunStatusSummarizing marks the per-article summarization stage.
	RunStatusSummarizing RunStatus = "summarizing"
	// RunStatusSynthesizing marks the cross-article synthesis stage.
	RunStatusSynthesizing RunStatus = "synthesizing"
	// RunStatusCompleted is terminal success, partial failures included.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed is terminal failure; FailureReason explains it.
	RunStatusFailed RunStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// runTransitions is the allowed forward edge per state. Failed is
// reachable from every non-terminal state and is handled separately.
var runTransitions = map[RunStatus]RunStatus{
	RunStatusPending:      RunStatusCollecting,
	RunStatusCollecting:   RunStatusIndexing,
	RunStatusIndexing:     RunStatusSummarizing,
	RunStatusSummarizing:  RunStatusSynthesizing,
	RunStatusSynthesizing: RunStatusCompleted,
}

// CanTransition reports whether a run may move from one status to
// another.
func CanTransition(from, to RunStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == RunStatusFailed {
		return true
	}
	return runTransitions[from] == to
}

// AllRunStatuses lists every lifecycle state.
var AllRunStatuses = []RunStatus{
	RunStatusPending,
	RunStatusCollecting,
	RunStatusIndexing,
	RunStatusSummarizing,
	RunStatusSynthesizing,
	RunStatusCompleted,
	RunStatusFailed,
}

// TransitionSources returns the states a run may move to the given
// status from.
func TransitionSources(to RunStatus) []RunStatus {
	var sources []RunStatus
	for _, from := range AllRunStatuses {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// Run is one end-to-end pipeline execution for a single keyword request.
// It is owned by the pipeline controller and mutated only through its
// state machine.
type Run struct {
	ID                    uuid.UUID
	Keyword               string
	RequestedArticleCount int
	Status                RunStatus
	ArticleIDs            []string
	QuickSummary          string
	FailureReason         string
	ReportPath            string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
