package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"protocol-engine/internal/domain"
)

// SearchVariants runs one vector search per variant concurrently (Stage 3,
// fan-out) and enforces the similarity threshold on each hit list. A failed
// or timed-out secondary variant contributes zero candidates; a failed
// primary fails the whole request, since partial unreranked guidance is
// worse than a signaled error.
func SearchVariants(
	ctx context.Context,
	sc *StageContext,
	repo domain.PassageRepository,
	logger *slog.Logger,
) error {
	start := time.Now()
	filter := domain.SearchFilter{AgencyName: sc.AgencyFilter}

	type searchResult struct {
		index   int
		results []domain.SearchResult
		err     error
	}

	resultsChan := make(chan searchResult, len(sc.Embeddings))
	var wg sync.WaitGroup
	for i, embedding := range sc.Embeddings {
		wg.Add(1)
		go func(idx int, qv []float32) {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, sc.SearchTimeout)
			defer cancel()
			results, err := repo.Search(sctx, qv, sc.Limit, filter)
			resultsChan <- searchResult{index: idx, results: results, err: err}
		}(i, embedding)
	}
	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	sc.VariantHits = make([][]domain.SearchResult, len(sc.Embeddings))
	var primaryErr error
	for sr := range resultsChan {
		if sr.err != nil {
			if sr.index == 0 {
				primaryErr = sr.err
				continue
			}
			logger.Warn("variant_search_failed",
				slog.String("request_id", sc.RequestID),
				slog.Int("variant", sr.index),
				slog.String("error", sr.err.Error()))
			continue
		}
		sc.VariantHits[sr.index] = applyThreshold(sr.results, sc.SimilarityThreshold)
	}
	if primaryErr != nil {
		return fmt.Errorf("primary search failed: %w", &domain.RetrievalUnavailableError{Err: primaryErr})
	}

	sc.SearchDuration = time.Since(start)
	logger.Info("parallel_vector_search_completed",
		slog.String("request_id", sc.RequestID),
		slog.Int("variant_count", len(sc.Embeddings)),
		slog.Int64("duration_ms", sc.SearchDuration.Milliseconds()))
	return nil
}

// applyThreshold clamps similarities to [0,1] and drops results below the
// configured minimum. Results are dropped, never zero-padded.
func applyThreshold(results []domain.SearchResult, threshold float32) []domain.SearchResult {
	kept := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity < 0 {
			r.Similarity = 0
		}
		if r.Similarity > 1 {
			r.Similarity = 1
		}
		if r.Similarity >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// FuseCandidates collapses the per-variant hit lists into one candidate set
// (Stage 4). With a single variant the hits pass through in similarity
// order. With multiple variants, reciprocal-rank fusion scores each passage
// as the sum over variants of 1/(rank+k): passages ranking well across
// phrasings beat passages ranking extremely well in only one. Ties break by
// best raw similarity, then passage id, for determinism.
func FuseCandidates(sc *StageContext, logger *slog.Logger) {
	if len(sc.VariantHits) == 1 {
		sc.Candidates = make([]CandidateResult, 0, len(sc.VariantHits[0]))
		for _, r := range sc.VariantHits[0] {
			sc.Candidates = append(sc.Candidates, CandidateResult{
				Passage:            r.Passage,
				Similarity:         r.Similarity,
				SourceQueryVariant: sc.Variants[0],
			})
		}
		sortByVariantRank(sc.Candidates)
		return
	}

	type fused struct {
		candidate CandidateResult
		rrfScore  float64
	}
	fusedMap := make(map[uuid.UUID]*fused)

	for vi, hits := range sc.VariantHits {
		for rank, r := range hits {
			f, exists := fusedMap[r.Passage.ID]
			if !exists {
				f = &fused{candidate: CandidateResult{
					Passage:            r.Passage,
					Similarity:         r.Similarity,
					SourceQueryVariant: sc.Variants[vi],
				}}
				fusedMap[r.Passage.ID] = f
			} else if r.Similarity > f.candidate.Similarity {
				// Keep the best raw similarity for tie-breaking.
				f.candidate.Similarity = r.Similarity
			}
			f.rrfScore += 1.0 / (sc.RRFK + float64(rank+1))
		}
	}

	candidates := make([]CandidateResult, 0, len(fusedMap))
	scores := make(map[uuid.UUID]float64, len(fusedMap))
	for id, f := range fusedMap {
		candidates = append(candidates, f.candidate)
		scores[id] = f.rrfScore
	}
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := scores[candidates[i].Passage.ID], scores[candidates[j].Passage.ID]
		if si != sj {
			return si > sj
		}
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Passage.ID.String() < candidates[j].Passage.ID.String()
	})
	sc.Candidates = candidates

	logger.Info("rrf_fusion_completed",
		slog.String("request_id", sc.RequestID),
		slog.Int("variant_count", len(sc.VariantHits)),
		slog.Int("fused_count", len(candidates)))
}

func sortByVariantRank(candidates []CandidateResult) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Passage.ID.String() < candidates[j].Passage.ID.String()
	})
}
