package domain

import "context"

// LiteratureSource supplies candidate articles for a keyword. It may
// return fewer than maxResults; its output is untrusted and normalized
// before use.
type LiteratureSource interface {
	Search(ctx context.Context, keyword string, maxResults int) ([]Article, error)
}
