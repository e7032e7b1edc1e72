package usecase

import (
	"fmt"
	"time"

	"protocol-engine/internal/usecase/retrieval"
)

// RetrievalConfig holds tunable parameters for passage retrieval.
type RetrievalConfig struct {
	// SearchLimit is the number of nearest neighbors fetched per query
	// variant before fusion and reranking.
	SearchLimit int

	// SimilarityThreshold is the minimum cosine similarity a passage must
	// clear to be considered. Results below it are dropped, not padded.
	SimilarityThreshold float32

	// RRFK is the reciprocal-rank fusion constant. Standard value is 60.
	RRFK float64

	// SearchTimeout bounds each vector search sub-query.
	SearchTimeout time.Duration

	// MaxResults caps the ranked list handed downstream.
	MaxResults int

	// Rerank holds the scoring weights.
	Rerank retrieval.RerankConfig
}

// DefaultRetrievalConfig returns the production defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		SearchLimit:         30,
		SimilarityThreshold: 0.30,
		RRFK:                60.0,
		SearchTimeout:       1500 * time.Millisecond,
		MaxResults:          8,
		Rerank:              retrieval.DefaultRerankConfig(),
	}
}

// Validate checks the configuration values.
func (c RetrievalConfig) Validate() error {
	if c.SearchLimit <= 0 {
		return fmt.Errorf("searchLimit must be positive, got %d", c.SearchLimit)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarityThreshold must be in [0,1], got %f", c.SimilarityThreshold)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("rrfK must be positive, got %f", c.RRFK)
	}
	if c.SearchTimeout <= 0 {
		return fmt.Errorf("searchTimeout must be positive, got %v", c.SearchTimeout)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("maxResults must be positive, got %d", c.MaxResults)
	}
	if err := c.Rerank.Validate(); err != nil {
		return fmt.Errorf("rerank config invalid: %w", err)
	}
	return nil
}
