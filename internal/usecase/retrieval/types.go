package retrieval

import (
	"time"

	"protocol-engine/internal/domain"
)

// CandidateResult is a passage plus per-query scoring context. A passage
// may appear once per query variant before fusion collapses duplicates.
type CandidateResult struct {
	Passage            domain.Passage
	Similarity         float32
	SourceQueryVariant string
	RerankedScore      float64
}

// StageContext carries data between pipeline stages for one request.
type StageContext struct {
	// Input
	RequestID    string
	Query        domain.NormalizedQuery
	Strategy     domain.Strategy
	AgencyFilter string
	Limit        int

	// Stage 1 outputs: variant 0 is always the normalized query itself.
	Variants   []string
	Embeddings [][]float32

	// Stage 2 outputs, one hit list per variant.
	VariantHits [][]domain.SearchResult

	// Stage 3 outputs
	Candidates []CandidateResult

	// Config values (set once at init)
	SimilarityThreshold float32
	RRFK                float64
	SearchTimeout       time.Duration

	// Stage timings for the latency monitor.
	EmbeddingDuration time.Duration
	SearchDuration    time.Duration
	RerankDuration    time.Duration
}
