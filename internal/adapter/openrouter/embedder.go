package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"litwatch/internal/domain"
	"litwatch/internal/retry"

	"golang.org/x/time/rate"
)

// ClientConfig carries the shared settings of the OpenAI-compatible
// gateway clients. One rate limiter is shared between the embedder and
// the generator because both talk to the same upstream.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Embedder encodes texts through the gateway's /embeddings endpoint.
type Embedder struct {
	cfg       ClientConfig
	model     string
	dimension int
}

// NewEmbedder constructs an embedder for the given model. A dimension of
// zero disables the dimension check.
func NewEmbedder(cfg ClientConfig, model string, dimension int) *Embedder {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Embedder{cfg: cfg, model: model, dimension: dimension}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *Embedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, domain.NewEmbeddingError("embeddings.call",
			errors.New("no texts to encode"), false)
	}

	if e.cfg.Limiter != nil {
		if err := e.cfg.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	e.cfg.Logger.Info("embed_started",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.model),
	)
	start := time.Now()

	reqBody := embeddingsRequest{Model: e.model, Input: texts}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", e.cfg.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		e.cfg.Logger.Error("embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, domain.NewEmbeddingError("embeddings.call", err, true)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		e.cfg.Logger.Error("embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, domain.NewEmbeddingError("embeddings.call",
			fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, string(body)),
			retry.RetryableHTTPStatus(resp.StatusCode))
	}

	var respBody embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, domain.NewEmbeddingError("embeddings.decode", err, false)
	}

	if len(respBody.Data) != len(texts) {
		return nil, domain.NewEmbeddingError("embeddings.decode",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(respBody.Data)), false)
	}

	// The API may return items out of order; data[i].index maps each
	// embedding back to its input.
	out := make([][]float32, len(texts))
	for _, item := range respBody.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, domain.NewEmbeddingError("embeddings.decode",
				fmt.Errorf("embedding index %d out of range", item.Index), false)
		}
		if e.dimension > 0 && len(item.Embedding) != e.dimension {
			return nil, domain.NewEmbeddingError("embeddings.decode",
				fmt.Errorf("embedding dimension %d, expected %d", len(item.Embedding), e.dimension), false)
		}
		out[item.Index] = item.Embedding
	}
	for i, vec := range out {
		if vec == nil {
			return nil, domain.NewEmbeddingError("embeddings.decode",
				fmt.Errorf("missing embedding for input %d", i), false)
		}
	}

	e.cfg.Logger.Info("embed_completed",
		slog.Int("embedding_count", len(out)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return out, nil
}

// Model returns the embedding model name chunks are namespaced by.
func (e *Embedder) Model() string {
	return e.model
}

var _ domain.VectorEncoder = (*Embedder)(nil)
