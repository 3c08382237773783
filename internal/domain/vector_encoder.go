package domain

import (
	"context"
)

// VectorEncoder defines the interface for generating embeddings.
// Encode preserves input order and length; implementations reject empty
// input and dimension drift with an embedding error.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}
