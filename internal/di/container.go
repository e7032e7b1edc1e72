package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"protocol-engine/internal/adapter/embedding"
	"protocol-engine/internal/adapter/httpapi"
	"protocol-engine/internal/adapter/repository"
	"protocol-engine/internal/cache"
	"protocol-engine/internal/domain"
	"protocol-engine/internal/infra/config"
	"protocol-engine/internal/infra/httpclient"
	"protocol-engine/internal/metrics"
	"protocol-engine/internal/normalize"
	"protocol-engine/internal/usecase"
	"protocol-engine/internal/usecase/retrieval"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	Repo    domain.PassageRepository
	Encoder domain.VectorEncoder
	Cache   *cache.EmbeddingCache
	Monitor *metrics.LatencyMonitor

	RetrieveUsecase usecase.RetrievePassagesUsecase
	IndexUsecase    usecase.IndexProtocolUsecase

	Handler *httpapi.Handler
}

// NewApplicationComponents wires all dependencies from config and database
// pool. The embedding cache and latency monitor are the only process-wide
// shared state; both are owned here and injected, never global.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	terms, err := normalize.LoadTerminologyFile(cfg.TerminologyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load terminology tables: %w", err)
	}
	normalizer := normalize.NewNormalizer(terms)

	embCache, err := cache.NewEmbeddingCache(cfg.Cache.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	monitor := metrics.NewLatencyMonitor(cfg.LatencyWindowSize)

	repo := repository.NewPassageRepository(pool)
	txManager := repository.NewPostgresTransactionManager(pool)

	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.Embedder.TimeoutSeconds) * time.Second)
	encoder := embedding.NewVoyageClient(
		cfg.Embedder.BaseURL,
		cfg.Embedder.APIKey,
		cfg.Embedder.Model,
		cfg.Embedder.RequestsPerSecond,
		embedderHTTP,
		log,
	)

	retrievalConfig := usecase.RetrievalConfig{
		SearchLimit:         cfg.Retrieval.SearchLimit,
		SimilarityThreshold: float32(cfg.Retrieval.SimilarityThreshold),
		RRFK:                cfg.Retrieval.RRFK,
		SearchTimeout:       time.Duration(cfg.Retrieval.SearchTimeoutMs) * time.Millisecond,
		MaxResults:          cfg.Retrieval.MaxResults,
		Rerank: retrieval.RerankConfig{
			WeightSimilarity:     cfg.Retrieval.WeightSimilarity,
			WeightContext:        cfg.Retrieval.WeightContext,
			MedicationBoost:      cfg.Retrieval.MedicationBoost,
			NearDuplicatePenalty: cfg.Retrieval.NearDupPenalty,
		},
	}

	retrieveUsecase, err := usecase.NewRetrievePassagesUsecase(
		normalizer, repo, encoder, embCache, monitor, retrievalConfig, log,
	)
	if err != nil {
		return nil, err
	}

	chunker := domain.NewChunker()
	indexUsecase := usecase.NewIndexProtocolUsecase(repo, txManager, chunker, encoder, log)

	handler := httpapi.NewHandler(retrieveUsecase, repo, embCache, monitor)

	log.Info("components_wired",
		slog.String("embedding_model", cfg.Embedder.Model),
		slog.Int("terminology_version", terms.Version()),
		slog.Int("cache_size", cfg.Cache.MaxEntries))

	return &ApplicationComponents{
		Repo:            repo,
		Encoder:         encoder,
		Cache:           embCache,
		Monitor:         monitor,
		RetrieveUsecase: retrieveUsecase,
		IndexUsecase:    indexUsecase,
		Handler:         handler,
	}, nil
}
