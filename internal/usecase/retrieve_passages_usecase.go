package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"protocol-engine/internal/cache"
	"protocol-engine/internal/domain"
	"protocol-engine/internal/metrics"
	"protocol-engine/internal/normalize"
	"protocol-engine/internal/usecase/retrieval"
)

// RetrievePassagesInput defines the input parameters for RetrievePassages.
type RetrievePassagesInput struct {
	Query      string
	Tier       domain.UserTier
	AgencyName string
}

// RetrievePassagesOutput is the ranked, deduplicated passage set plus the
// hints the downstream language-model call needs.
type RetrievePassagesOutput struct {
	Query      domain.NormalizedQuery
	Strategy   domain.Strategy
	Results    []retrieval.CandidateResult
	ModelClass domain.ModelClass
}

// RetrievePassagesUsecase defines the interface for the retrieval engine.
type RetrievePassagesUsecase interface {
	Execute(ctx context.Context, input RetrievePassagesInput) (*RetrievePassagesOutput, error)
}

type retrievePassagesUsecase struct {
	normalizer *normalize.Normalizer
	repo       domain.PassageRepository
	encoder    domain.VectorEncoder
	embCache   *cache.EmbeddingCache
	monitor    *metrics.LatencyMonitor
	config     RetrievalConfig
	logger     *slog.Logger
}

// NewRetrievePassagesUsecase wires the retrieval pipeline.
func NewRetrievePassagesUsecase(
	normalizer *normalize.Normalizer,
	repo domain.PassageRepository,
	encoder domain.VectorEncoder,
	embCache *cache.EmbeddingCache,
	monitor *metrics.LatencyMonitor,
	config RetrievalConfig,
	logger *slog.Logger,
) (RetrievePassagesUsecase, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}
	return &retrievePassagesUsecase{
		normalizer: normalizer,
		repo:       repo,
		encoder:    encoder,
		embCache:   embCache,
		monitor:    monitor,
		config:     config,
		logger:     logger,
	}, nil
}

func (u *retrievePassagesUsecase) Execute(ctx context.Context, input RetrievePassagesInput) (*RetrievePassagesOutput, error) {
	totalStart := time.Now()
	requestID := uuid.NewString()

	query, err := u.normalizer.Normalize(input.Query)
	if err != nil {
		return nil, err
	}

	tier := input.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	strategy := SelectStrategy(query, tier)

	u.logger.Info("strategy_selected",
		slog.String("request_id", requestID),
		slog.String("intent", string(query.Intent)),
		slog.Bool("is_emergent", query.IsEmergent),
		slog.Bool("is_complex", query.IsComplex),
		slog.String("tier", string(tier)),
		slog.Bool("fusion", strategy.UseMultiQueryFusion),
		slog.Bool("advanced_rerank", strategy.UseAdvancedRerank),
		slog.String("model_class", string(strategy.ModelClass)))

	sc := &retrieval.StageContext{
		RequestID:           requestID,
		Query:               query,
		Strategy:            strategy,
		AgencyFilter:        input.AgencyName,
		Limit:               u.config.SearchLimit,
		SimilarityThreshold: u.config.SimilarityThreshold,
		RRFK:                u.config.RRFK,
		SearchTimeout:       u.config.SearchTimeout,
	}

	retrieval.BuildVariants(sc, u.logger)

	if err := retrieval.EmbedVariants(ctx, sc, u.embCache, u.encoder, u.logger); err != nil {
		return nil, err
	}
	u.monitor.Record(metrics.StageEmbedding, sc.EmbeddingDuration)

	if err := retrieval.SearchVariants(ctx, sc, u.repo, u.logger); err != nil {
		return nil, err
	}
	u.monitor.Record(metrics.StageVectorSearch, sc.SearchDuration)

	retrieval.FuseCandidates(sc, u.logger)

	rerankStart := time.Now()
	ranked := retrieval.Rerank(sc.Candidates, query, retrieval.RerankContext{AgencyName: input.AgencyName}, strategy.UseAdvancedRerank, u.config.Rerank)
	sc.RerankDuration = time.Since(rerankStart)
	u.monitor.Record(metrics.StageRerank, sc.RerankDuration)

	if len(ranked) > u.config.MaxResults {
		ranked = ranked[:u.config.MaxResults]
	}

	total := time.Since(totalStart)
	u.monitor.Record(metrics.StageTotalRetrieval, total)

	cacheStats := u.embCache.Stats()
	metrics.RequestEvent{
		RequestID:        requestID,
		Intent:           string(query.Intent),
		IsEmergent:       query.IsEmergent,
		IsComplex:        query.IsComplex,
		Tier:             string(tier),
		FusionEnabled:    strategy.UseMultiQueryFusion,
		AdvancedRerank:   strategy.UseAdvancedRerank,
		ModelClass:       string(strategy.ModelClass),
		VariantCount:     len(sc.Variants),
		CandidateCount:   len(sc.Candidates),
		ResultCount:      len(ranked),
		CacheHits:        cacheStats.Hits,
		CacheMisses:      cacheStats.Misses,
		EmbeddingMs:      sc.EmbeddingDuration.Milliseconds(),
		VectorSearchMs:   sc.SearchDuration.Milliseconds(),
		RerankMs:         sc.RerankDuration.Milliseconds(),
		TotalRetrievalMs: total.Milliseconds(),
	}.Emit(u.logger)

	// An empty ranked set is a valid outcome: the caller asks the user to
	// rephrase rather than treating it as a failure.
	return &RetrievePassagesOutput{
		Query:      query,
		Strategy:   strategy,
		Results:    ranked,
		ModelClass: strategy.ModelClass,
	}, nil
}
