package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures.
type ErrorKind string

const (
	// ErrorKindCollection covers literature-source failures; an empty
	// result set is run-fatal.
	ErrorKindCollection ErrorKind = "collection"
	// ErrorKindEmbedding covers encoder failures; a permanently failing
	// article is excluded from later stages.
	ErrorKindEmbedding ErrorKind = "embedding"
	// ErrorKindGeneration covers text-generation failures; the
	// summarizer falls back to abstract text instead of excluding.
	ErrorKindGeneration ErrorKind = "generation"
	// ErrorKindStore covers transactional store failures.
	ErrorKindStore ErrorKind = "store"
	// ErrorKindValidation covers malformed input rejected before a run
	// is created.
	ErrorKindValidation ErrorKind = "validation"
)

// PipelineError wraps a failure with its taxonomy kind, the operation
// that produced it, and whether a retry may succeed.
type PipelineError struct {
	Kind      ErrorKind
	Op        string
	Err       error
	Transient bool
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error in %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func newPipelineError(kind ErrorKind, op string, err error, transient bool) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err, Transient: transient}
}

// NewCollectionError builds a collection-stage error.
func NewCollectionError(op string, err error, transient bool) *PipelineError {
	return newPipelineError(ErrorKindCollection, op, err, transient)
}

// NewEmbeddingError builds an encoder error.
func NewEmbeddingError(op string, err error, transient bool) *PipelineError {
	return newPipelineError(ErrorKindEmbedding, op, err, transient)
}

// NewGenerationError builds a text-generation error.
func NewGenerationError(op string, err error, transient bool) *PipelineError {
	return newPipelineError(ErrorKindGeneration, op, err, transient)
}

// NewStoreError builds a persistence error. Store failures are treated
// as transient unless the caller knows better.
func NewStoreError(op string, err error) *PipelineError {
	return newPipelineError(ErrorKindStore, op, err, true)
}

// NewValidationError builds an input-validation error. Never transient.
func NewValidationError(op string, err error) *PipelineError {
	return newPipelineError(ErrorKindValidation, op, err, false)
}

// KindOf returns the taxonomy kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsTransient reports whether err is explicitly marked retryable.
// Errors outside the taxonomy are resolved by the retry classifier.
func IsTransient(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
