package domain

import (
	"fmt"
	"strings"
)

// ChunkerVersion identifies the chunking algorithm that produced a chunk
// set, so stored chunks stay traceable to the splitter that cut them.
type ChunkerVersion string

const (
	// ChunkerVersionV1 is the token-window chunker with sentence-aware
	// cuts and fixed overlap.
	ChunkerVersionV1 ChunkerVersion = "v1"
)

const (
	// DefaultChunkMaxTokens bounds one chunk, counted in whitespace
	// words.
	DefaultChunkMaxTokens = 280
	// DefaultChunkOverlapTokens is carried from the tail of one chunk
	// into the head of the next.
	DefaultChunkOverlapTokens = 40
)

// TextChunk is a chunker output span before embedding.
type TextChunk struct {
	SequenceIndex int
	Text          string
	TokenCount    int
}

// Chunker splits article text into bounded, overlapping spans.
type Chunker interface {
	Chunk(text string) ([]TextChunk, error)
	Version() ChunkerVersion
}

type tokenChunker struct {
	maxTokens     int
	overlapTokens int
}

// NewChunker builds the default token-window chunker.
func NewChunker() Chunker {
	c, _ := NewTokenChunker(DefaultChunkMaxTokens, DefaultChunkOverlapTokens)
	return c
}

// NewTokenChunker builds a chunker with explicit bounds. Overlap must be
// smaller than the window or the cursor could not advance.
func NewTokenChunker(maxTokens, overlapTokens int) (Chunker, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunker: max tokens must be positive, got %d", maxTokens)
	}
	if overlapTokens < 0 || overlapTokens >= maxTokens {
		return nil, fmt.Errorf("chunker: overlap %d must be in [0,%d)", overlapTokens, maxTokens)
	}
	return &tokenChunker{maxTokens: maxTokens, overlapTokens: overlapTokens}, nil
}

func (c *tokenChunker) Version() ChunkerVersion {
	return ChunkerVersionV1
}

// Chunk splits text into overlapping windows of at most maxTokens words,
// preferring to cut at sentence boundaries. Text that fits one window is
// returned as a single chunk; empty input yields a single empty chunk so
// every article keeps at least one chunk. The final window always starts
// overlapTokens words before the previous cut, so it is never a stub.
func (c *tokenChunker) Chunk(text string) ([]TextChunk, error) {
	trimmed := strings.TrimSpace(text)
	words := strings.Fields(trimmed)

	if len(words) <= c.maxTokens {
		return []TextChunk{{SequenceIndex: 0, Text: trimmed, TokenCount: len(words)}}, nil
	}

	var spans []string
	start := 0
	for start < len(words) {
		end := start + c.maxTokens
		if end >= len(words) {
			spans = append(spans, strings.Join(words[start:], " "))
			break
		}

		cut := sentenceCut(words[start:end])
		if cut <= c.overlapTokens {
			// No usable boundary past the overlap region, cut hard.
			cut = c.maxTokens
		}
		spans = append(spans, strings.Join(words[start:start+cut], " "))
		start += cut - c.overlapTokens
	}

	chunks := make([]TextChunk, 0, len(spans))
	for i, span := range spans {
		chunks = append(chunks, TextChunk{
			SequenceIndex: i,
			Text:          span,
			TokenCount:    len(strings.Fields(span)),
		})
	}
	return chunks, nil
}
