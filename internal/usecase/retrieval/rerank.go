package retrieval

import (
	"fmt"
	"sort"

	"protocol-engine/internal/domain"
)

// RerankConfig holds the tunable scoring weights. Boost magnitudes are
// configuration, not hard-coded literals.
type RerankConfig struct {
	// WeightSimilarity and WeightContext must sum to 1.0.
	WeightSimilarity float64
	WeightContext    float64
	// MedicationBoost is added when the query asks for dosing and the
	// passage chunk is medication-classified.
	MedicationBoost float64
	// NearDuplicatePenalty scales down adjacent chunks of an already
	// kept protocol section in advanced mode, in [0,1).
	NearDuplicatePenalty float64
}

// DefaultRerankConfig returns the production weights.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		WeightSimilarity:     0.85,
		WeightContext:        0.15,
		MedicationBoost:      0.05,
		NearDuplicatePenalty: 0.25,
	}
}

// Validate checks the weight invariants.
func (c RerankConfig) Validate() error {
	const epsilon = 1e-9
	sum := c.WeightSimilarity + c.WeightContext
	if sum < 1.0-epsilon || sum > 1.0+epsilon {
		return fmt.Errorf("similarity and context weights must sum to 1.0, got %f", sum)
	}
	if c.NearDuplicatePenalty < 0 || c.NearDuplicatePenalty >= 1 {
		return fmt.Errorf("near-duplicate penalty must be in [0,1), got %f", c.NearDuplicatePenalty)
	}
	return nil
}

// RerankContext carries caller context that biases scoring.
type RerankContext struct {
	AgencyName string
}

// Rerank scores, deduplicates, and orders candidates (Stage 5). It is a
// pure function: identical inputs yield identical output, with ties broken
// by passage id. Advanced mode additionally penalizes near-duplicate
// passages (same protocol, adjacent chunk index) so two adjacent chunks of
// one section do not crowd out a distinct protocol.
func Rerank(candidates []CandidateResult, query domain.NormalizedQuery, rctx RerankContext, advanced bool, cfg RerankConfig) []CandidateResult {
	// Dedupe by passage id, keeping the highest-similarity occurrence.
	byID := make(map[string]CandidateResult, len(candidates))
	for _, c := range candidates {
		id := c.Passage.ID.String()
		if existing, ok := byID[id]; !ok || c.Similarity > existing.Similarity {
			byID[id] = c
		}
	}

	ranked := make([]CandidateResult, 0, len(byID))
	for _, c := range byID {
		contextBoost := 0.0
		if rctx.AgencyName != "" && c.Passage.AgencyName == rctx.AgencyName {
			contextBoost = 1.0
		}
		score := float64(c.Similarity)*cfg.WeightSimilarity + contextBoost*cfg.WeightContext
		if query.Intent == domain.IntentMedicationDosing && c.Passage.Meta.ContentType == domain.ContentTypeMedication {
			score += cfg.MedicationBoost
		}
		c.RerankedScore = score
		ranked = append(ranked, c)
	}
	sortRanked(ranked)

	if advanced && cfg.NearDuplicatePenalty > 0 {
		penalizeNearDuplicates(ranked, cfg.NearDuplicatePenalty)
		sortRanked(ranked)
	}

	return ranked
}

// penalizeNearDuplicates walks the ranked list and scales down any passage
// that is chunk-adjacent to a better-ranked passage of the same protocol.
func penalizeNearDuplicates(ranked []CandidateResult, penalty float64) {
	type kept struct {
		protocol string
		index    int
	}
	var seen []kept
	for i := range ranked {
		p := ranked[i].Passage
		dup := false
		for _, k := range seen {
			if k.protocol == p.ProtocolNumber && abs(k.index-p.Meta.ChunkIndex) <= 1 {
				dup = true
				break
			}
		}
		if dup {
			ranked[i].RerankedScore *= 1.0 - penalty
		} else {
			seen = append(seen, kept{protocol: p.ProtocolNumber, index: p.Meta.ChunkIndex})
		}
	}
}

func sortRanked(ranked []CandidateResult) {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].RerankedScore != ranked[j].RerankedScore {
			return ranked[i].RerankedScore > ranked[j].RerankedScore
		}
		return ranked[i].Passage.ID.String() < ranked[j].Passage.ID.String()
	})
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
