package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protocol-engine/internal/domain"
)

func candidate(id byte, similarity float32) CandidateResult {
	return CandidateResult{
		Passage:    domain.Passage{ID: passageID(id), ProtocolNumber: "C-001"},
		Similarity: similarity,
	}
}

func TestRerankConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultRerankConfig().Validate())

	bad := DefaultRerankConfig()
	bad.WeightSimilarity = 0.5
	assert.Error(t, bad.Validate())

	bad = DefaultRerankConfig()
	bad.NearDuplicatePenalty = 1.0
	assert.Error(t, bad.Validate())

	bad = DefaultRerankConfig()
	bad.NearDuplicatePenalty = -0.1
	assert.Error(t, bad.Validate())
}

func TestRerank_OrdersBySimilarity(t *testing.T) {
	candidates := []CandidateResult{
		candidate(2, 0.6),
		candidate(1, 0.9),
		candidate(3, 0.3),
	}

	ranked := Rerank(candidates, domain.NormalizedQuery{}, RerankContext{}, false, DefaultRerankConfig())

	require.Len(t, ranked, 3)
	assert.Equal(t, passageID(1), ranked[0].Passage.ID)
	assert.Equal(t, passageID(2), ranked[1].Passage.ID)
	assert.Equal(t, passageID(3), ranked[2].Passage.ID)
	assert.Greater(t, ranked[0].RerankedScore, ranked[1].RerankedScore)
}

func TestRerank_DeduplicatesByPassageID(t *testing.T) {
	candidates := []CandidateResult{
		candidate(1, 0.5),
		candidate(1, 0.8),
		candidate(2, 0.6),
	}

	ranked := Rerank(candidates, domain.NormalizedQuery{}, RerankContext{}, false, DefaultRerankConfig())

	require.Len(t, ranked, 2)
	assert.Equal(t, passageID(1), ranked[0].Passage.ID)
	assert.Equal(t, float32(0.8), ranked[0].Similarity)
}

func TestRerank_AgencyContextBoost(t *testing.T) {
	local := candidate(1, 0.70)
	local.Passage.AgencyName = "Contra Costa County EMS"
	remote := candidate(2, 0.74)
	remote.Passage.AgencyName = "Somewhere Else"

	ranked := Rerank(
		[]CandidateResult{remote, local},
		domain.NormalizedQuery{},
		RerankContext{AgencyName: "Contra Costa County EMS"},
		false,
		DefaultRerankConfig(),
	)

	// 0.70*0.85 + 0.15 > 0.74*0.85: the caller's own agency wins.
	require.Len(t, ranked, 2)
	assert.Equal(t, passageID(1), ranked[0].Passage.ID)
}

func TestRerank_MedicationBoostRequiresDosingIntent(t *testing.T) {
	medChunk := candidate(1, 0.70)
	medChunk.Passage.Meta.ContentType = domain.ContentTypeMedication
	general := candidate(2, 0.72)

	cfg := DefaultRerankConfig()

	ranked := Rerank([]CandidateResult{general, medChunk},
		domain.NormalizedQuery{Intent: domain.IntentMedicationDosing}, RerankContext{}, false, cfg)
	assert.Equal(t, passageID(1), ranked[0].Passage.ID, "dosing intent boosts medication chunks")

	ranked = Rerank([]CandidateResult{general, medChunk},
		domain.NormalizedQuery{Intent: domain.IntentGeneral}, RerankContext{}, false, cfg)
	assert.Equal(t, passageID(2), ranked[0].Passage.ID, "no boost without dosing intent")
}

func TestRerank_AdvancedPenalizesAdjacentChunks(t *testing.T) {
	first := candidate(1, 0.90)
	first.Passage.Meta.ChunkIndex = 2
	adjacent := candidate(2, 0.88)
	adjacent.Passage.Meta.ChunkIndex = 3
	distinct := candidate(3, 0.80)
	distinct.Passage.ProtocolNumber = "C-007"

	ranked := Rerank([]CandidateResult{first, adjacent, distinct},
		domain.NormalizedQuery{}, RerankContext{}, true, DefaultRerankConfig())

	require.Len(t, ranked, 3)
	assert.Equal(t, passageID(1), ranked[0].Passage.ID)
	// The adjacent chunk of the same protocol drops behind the distinct one.
	assert.Equal(t, passageID(3), ranked[1].Passage.ID)
	assert.Equal(t, passageID(2), ranked[2].Passage.ID)
}

func TestRerank_BasicModeKeepsAdjacentChunks(t *testing.T) {
	first := candidate(1, 0.90)
	first.Passage.Meta.ChunkIndex = 2
	adjacent := candidate(2, 0.88)
	adjacent.Passage.Meta.ChunkIndex = 3
	distinct := candidate(3, 0.80)
	distinct.Passage.ProtocolNumber = "C-007"

	ranked := Rerank([]CandidateResult{first, adjacent, distinct},
		domain.NormalizedQuery{}, RerankContext{}, false, DefaultRerankConfig())

	assert.Equal(t, passageID(2), ranked[1].Passage.ID)
}

func TestRerank_Deterministic(t *testing.T) {
	candidates := []CandidateResult{
		candidate(4, 0.5),
		candidate(2, 0.5),
		candidate(3, 0.5),
		candidate(1, 0.5),
	}

	first := Rerank(candidates, domain.NormalizedQuery{}, RerankContext{}, true, DefaultRerankConfig())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Rerank(candidates, domain.NormalizedQuery{}, RerankContext{}, true, DefaultRerankConfig()))
	}
}

func TestRerank_EmptyInput(t *testing.T) {
	ranked := Rerank(nil, domain.NormalizedQuery{}, RerankContext{}, true, DefaultRerankConfig())
	assert.Empty(t, ranked)
}
