package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"litwatch/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError(t *testing.T) {
	t.Run("Wraps the underlying error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := domain.NewEmbeddingError("encoder.Encode", cause, true)

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "embedding error in encoder.Encode")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("Survives further wrapping", func(t *testing.T) {
		inner := domain.NewGenerationError("generator.Complete", errors.New("status 503"), true)
		wrapped := fmt.Errorf("summarize article abc: %w", inner)

		var pe *domain.PipelineError
		assert.ErrorAs(t, wrapped, &pe)
		assert.Equal(t, domain.ErrorKindGeneration, pe.Kind)
		assert.Equal(t, domain.ErrorKindGeneration, domain.KindOf(wrapped))
	})

	t.Run("KindOf returns empty for plain errors", func(t *testing.T) {
		assert.Equal(t, domain.ErrorKind(""), domain.KindOf(errors.New("plain")))
		assert.Equal(t, domain.ErrorKind(""), domain.KindOf(nil))
	})

	t.Run("Transient flag drives IsTransient", func(t *testing.T) {
		assert.True(t, domain.IsTransient(domain.NewEmbeddingError("op", errors.New("timeout"), true)))
		assert.False(t, domain.IsTransient(domain.NewEmbeddingError("op", errors.New("bad request"), false)))
		assert.True(t, domain.IsTransient(domain.NewStoreError("op", errors.New("deadlock"))))
		assert.False(t, domain.IsTransient(domain.NewValidationError("op", errors.New("empty keyword"))))
		assert.False(t, domain.IsTransient(errors.New("unclassified")))
	})
}
