package domain

import (
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Article is an ingested paper record. Articles are immutable once stored
// and identified by SourceID across all runs.
type Article struct {
	SourceID    string
	Title       string
	Authors     []string
	Abstract    string
	Categories  []string
	PublishedAt time.Time
	SourceURL   string
	PDFURL      string
	CreatedAt   time.Time
}

// Normalize fills untrusted collector output into a storable record.
// Missing text fields become empty strings, surrounding whitespace is
// dropped, and nil slices become empty ones.
func (a Article) Normalize() Article {
	a.SourceID = strings.TrimSpace(a.SourceID)
	a.Title = strings.TrimSpace(a.Title)
	a.Abstract = strings.TrimSpace(a.Abstract)
	a.SourceURL = strings.TrimSpace(a.SourceURL)
	a.PDFURL = strings.TrimSpace(a.PDFURL)
	if a.Authors == nil {
		a.Authors = []string{}
	}
	if a.Categories == nil {
		a.Categories = []string{}
	}
	return a
}

// EmbeddingText is the text an article is chunked and embedded from.
func (a Article) EmbeddingText() string {
	if strings.TrimSpace(a.Abstract) == "" {
		return a.Title
	}
	return a.Title + "\n\n" + a.Abstract
}

// Chunk is the unit of retrieval: a bounded span of an article's text
// paired with its embedding. SequenceIndex preserves document order and,
// together with ArticleSourceID, is the chunk's identity.
type Chunk struct {
	ArticleSourceID string
	SequenceIndex   int
	Text            string
	Embedding       pgvector.Vector
	TokenCount      int
	EmbeddingModel  string
	CreatedAt       time.Time
}

// Ref returns the chunk's stable identifier.
func (c Chunk) Ref() ChunkRef {
	return ChunkRef{ArticleSourceID: c.ArticleSourceID, SequenceIndex: c.SequenceIndex}
}

// ChunkRef identifies a stored chunk without carrying its payload.
type ChunkRef struct {
	ArticleSourceID string `json:"article_source_id"`
	SequenceIndex   int    `json:"sequence_index"`
}

// ScoredChunk is a chunk found via similarity search together with its
// cosine similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}
