package httpapi

import (
	"net/http"

	"litwatch/internal/infra/config"

	"github.com/labstack/echo/v4"
)

type configResponse struct {
	GenerationModel    string `json:"generation_model"`
	EmbeddingModel     string `json:"embedding_model"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	ChunkMaxTokens     int    `json:"chunk_max_tokens"`
	ChunkOverlapTokens int    `json:"chunk_overlap_tokens"`
	RetrievalTopK      int    `json:"retrieval_top_k"`
	MaxContextChars    int    `json:"max_context_chars"`
	DefaultMaxArticles int    `json:"default_max_articles"`
	IndexConcurrency   int    `json:"index_concurrency"`
	SummaryConcurrency int    `json:"summary_concurrency"`
	ArxivBaseURL       string `json:"arxiv_base_url"`
}

// ConfigHandler exposes the effective pipeline configuration. Secrets
// and connection strings never appear in the response.
type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

func (h *ConfigHandler) Handle(c echo.Context) error {
	return c.JSON(http.StatusOK, configResponse{
		GenerationModel:    h.cfg.LLM.GenerationModel,
		EmbeddingModel:     h.cfg.LLM.EmbeddingModel,
		EmbeddingDimension: h.cfg.LLM.EmbeddingDimension,
		ChunkMaxTokens:     h.cfg.Chunking.MaxTokens,
		ChunkOverlapTokens: h.cfg.Chunking.OverlapTokens,
		RetrievalTopK:      h.cfg.Retrieval.TopK,
		MaxContextChars:    h.cfg.Retrieval.MaxContextChars,
		DefaultMaxArticles: h.cfg.Pipeline.DefaultMaxArticles,
		IndexConcurrency:   h.cfg.Pipeline.IndexConcurrency,
		SummaryConcurrency: h.cfg.Pipeline.SummaryConcurrency,
		ArxivBaseURL:       h.cfg.Arxiv.BaseURL,
	})
}
