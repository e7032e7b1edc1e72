package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"protocol-engine/internal/cache"
	"protocol-engine/internal/domain"
)

// maxExtraVariants bounds query expansion to keep fan-out predictable.
const maxExtraVariants = 2

// BuildVariants fills sc.Variants (Stage 1). Variant 0 is the normalized
// query. When fusion is enabled, 1-2 deterministic rephrasings are added so
// passages that rank well across phrasings win fusion. The templates are
// fixed: expansion stays a pure function of the normalized query.
func BuildVariants(sc *StageContext, logger *slog.Logger) {
	sc.Variants = []string{sc.Query.Normalized}
	if !sc.Strategy.UseMultiQueryFusion {
		return
	}

	var extra []string
	if len(sc.Query.Medications) > 0 {
		extra = append(extra, fmt.Sprintf("%s dosing route and administration", strings.Join(sc.Query.Medications, " and ")))
	}
	switch {
	case sc.Query.IsEmergent:
		extra = append(extra, sc.Query.Normalized+" emergency treatment steps")
	case sc.Query.Intent == domain.IntentContraindicationCheck:
		extra = append(extra, sc.Query.Normalized+" contraindications and precautions")
	default:
		extra = append(extra, "EMS protocol for "+sc.Query.Normalized)
	}
	if len(extra) > maxExtraVariants {
		extra = extra[:maxExtraVariants]
	}
	sc.Variants = append(sc.Variants, extra...)

	logger.Debug("query_variants_built",
		slog.String("request_id", sc.RequestID),
		slog.Any("variants", sc.Variants))
}

// EmbedVariants computes one embedding per variant concurrently (Stage 2),
// going through the shared cache so identical normalized text across
// requests costs one provider call. Only the primary variant's failure
// fails the request: without that vector there is nothing to search. A
// failed secondary variant is dropped and contributes zero candidates,
// mirroring the search stage's degradation rule.
func EmbedVariants(
	ctx context.Context,
	sc *StageContext,
	embCache *cache.EmbeddingCache,
	encoder domain.VectorEncoder,
	logger *slog.Logger,
) error {
	start := time.Now()
	embeddings := make([][]float32, len(sc.Variants))
	variantErrs := make([]error, len(sc.Variants))

	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range sc.Variants {
		i, variant := i, variant
		g.Go(func() error {
			vec, err := embedOne(gctx, embCache, encoder, variant)
			if err != nil {
				if i == 0 {
					return fmt.Errorf("failed to embed primary query: %w", err)
				}
				variantErrs[i] = err
				return nil
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	variants := make([]string, 0, len(sc.Variants))
	sc.Embeddings = make([][]float32, 0, len(embeddings))
	for i, vec := range embeddings {
		if variantErrs[i] != nil {
			logger.Warn("variant_embedding_failed",
				slog.String("request_id", sc.RequestID),
				slog.Int("variant", i),
				slog.String("error", variantErrs[i].Error()))
			continue
		}
		variants = append(variants, sc.Variants[i])
		sc.Embeddings = append(sc.Embeddings, vec)
	}
	sc.Variants = variants

	sc.EmbeddingDuration = time.Since(start)
	logger.Info("variants_embedded",
		slog.String("request_id", sc.RequestID),
		slog.Int("variant_count", len(sc.Variants)),
		slog.Int64("duration_ms", sc.EmbeddingDuration.Milliseconds()))
	return nil
}

func embedOne(ctx context.Context, embCache *cache.EmbeddingCache, encoder domain.VectorEncoder, variant string) ([]float32, error) {
	vec, err := embCache.GetOrCompute(ctx, variant, func(cctx context.Context) ([]float32, error) {
		embeddings, err := encoder.Encode(cctx, []string{variant})
		if err != nil {
			return nil, err
		}
		if len(embeddings) != 1 {
			return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
		}
		return embeddings[0], nil
	})
	if err != nil {
		return nil, err
	}
	if len(vec) != domain.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d, corpus uses %d", domain.ErrDimensionMismatch, len(vec), domain.EmbeddingDim)
	}
	return vec, nil
}
