package di

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"litwatch/internal/adapter/arxiv"
	"litwatch/internal/adapter/httpapi"
	"litwatch/internal/adapter/openrouter"
	"litwatch/internal/adapter/report"
	"litwatch/internal/adapter/repository"
	"litwatch/internal/domain"
	"litwatch/internal/infra/config"
	"litwatch/internal/infra/httpclient"
	"litwatch/internal/retry"
	"litwatch/internal/usecase"
	"litwatch/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	// Repositories
	ArticleRepo   domain.ArticleRepository
	ChunkRepo     domain.ChunkRepository
	RunRepo       domain.RunRepository
	SummaryRepo   domain.SummaryRepository
	SynthesisRepo domain.SynthesisRepository

	// Usecases
	StartRun    usecase.StartRunUsecase
	GetRun      usecase.GetRunUsecase
	RunPipeline usecase.RunPipelineUsecase

	// Worker
	Worker *worker.RunWorker

	// HTTP handlers
	RunHandler    *httpapi.RunHandler
	ConfigHandler *httpapi.ConfigHandler
	HealthHandler *httpapi.HealthHandler
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) *ApplicationComponents {
	// Repositories
	articleRepo := repository.NewArticleRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	runRepo := repository.NewRunRepository(pool)
	summaryRepo := repository.NewSummaryRepository(pool)
	synthesisRepo := repository.NewSynthesisRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	// Shared HTTP clients with connection pooling
	llmHTTP := httpclient.NewPooledClient(cfg.LLM.Timeout())
	arxivHTTP := httpclient.NewPooledClient(cfg.Arxiv.Timeout())

	// External clients. The embedder and the generator talk to the same
	// gateway, so they share one rate limiter.
	limiter := rate.NewLimiter(rate.Limit(cfg.LLM.RequestsPerSecond), 1)
	gatewayCfg := openrouter.ClientConfig{
		BaseURL: cfg.LLM.APIBase,
		APIKey:  cfg.LLM.APIKey,
		Client:  llmHTTP,
		Limiter: limiter,
		Logger:  log,
	}
	encoder := openrouter.NewEmbedder(gatewayCfg, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingDimension)
	generator := openrouter.NewGenerator(gatewayCfg, cfg.LLM.GenerationModel, cfg.LLM.Temperature)
	source := arxiv.NewClient(cfg.Arxiv.BaseURL, arxivHTTP, cfg.Arxiv.RequestInterval(), log)
	assembler := report.NewMarkdownAssembler(cfg.Reports.Dir)

	// Domain services. Chunk bounds are validated at config load.
	chunker, err := domain.NewTokenChunker(cfg.Chunking.MaxTokens, cfg.Chunking.OverlapTokens)
	if err != nil {
		log.Warn("invalid chunking bounds, using defaults", slog.String("error", err.Error()))
		chunker = domain.NewChunker()
	}
	prompts := usecase.NewPromptBuilder()
	retryExec := retry.NewExecutor(retry.NewPolicy(cfg.Pipeline.RetryMaxAttempts, cfg.Pipeline.RetryBaseDelay()))

	// Usecases
	indexUsecase := usecase.NewIndexArticleUsecase(articleRepo, chunkRepo, txManager, chunker, encoder, retryExec, log)
	retrieveUsecase := usecase.NewRetrieveContextUsecase(chunkRepo, encoder, retryExec, log)
	summarizer := usecase.NewSummarizeArticleUsecase(retrieveUsecase, generator, prompts, retryExec, usecase.SummarizerConfig{
		TopK:                 cfg.Retrieval.TopK,
		MaxContextChars:      cfg.Retrieval.MaxContextChars,
		FallbackSummaryChars: cfg.Pipeline.FallbackSummaryChars,
		MaxTokens:            cfg.LLM.SummaryMaxTokens,
	}, log)
	synthesizer := usecase.NewSynthesizeRunUsecase(generator, prompts, retryExec, cfg.LLM.SynthesisMaxTokens, log)
	runPipeline := usecase.NewRunPipelineUsecase(
		runRepo, articleRepo, summaryRepo, synthesisRepo,
		source, indexUsecase, summarizer, synthesizer, assembler,
		generator, prompts, retryExec,
		usecase.PipelineConfig{
			IndexConcurrency:     cfg.Pipeline.IndexConcurrency,
			SummaryConcurrency:   cfg.Pipeline.SummaryConcurrency,
			QuickSummaryArticles: cfg.Pipeline.QuickSummaryArticles,
		},
		log,
	)
	startRun := usecase.NewStartRunUsecase(runRepo, cfg.Pipeline.DefaultMaxArticles, log)
	getRun := usecase.NewGetRunUsecase(runRepo, summaryRepo, synthesisRepo)

	// Worker
	runWorker := worker.NewRunWorker(runRepo, runPipeline, cfg.Pipeline.WorkerPollInterval(), cfg.Pipeline.RunTimeout(), log)

	return &ApplicationComponents{
		ArticleRepo:   articleRepo,
		ChunkRepo:     chunkRepo,
		RunRepo:       runRepo,
		SummaryRepo:   summaryRepo,
		SynthesisRepo: synthesisRepo,
		StartRun:      startRun,
		GetRun:        getRun,
		RunPipeline:   runPipeline,
		Worker:        runWorker,
		RunHandler:    httpapi.NewRunHandler(startRun, getRun, log),
		ConfigHandler: httpapi.NewConfigHandler(cfg),
		HealthHandler: httpapi.NewHealthHandler(pool),
	}
}
