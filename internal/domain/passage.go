package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim is the fixed dimensionality of all corpus and query
// embeddings (voyage-large-2). Corpus and query vectors must match.
const EmbeddingDim = 1536

// ContentType classifies what kind of protocol text a chunk holds.
type ContentType string

const (
	ContentTypeMedication ContentType = "medication"
	ContentTypeProcedure  ContentType = "procedure"
	ContentTypeAssessment ContentType = "assessment"
	ContentTypeGeneral    ContentType = "general"
)

// ChunkMetadata is produced at ingestion time and carried on every passage.
type ChunkMetadata struct {
	ChunkIndex  int
	TotalChunks int
	// IsComplete is true when the chunk ends on a sentence boundary.
	IsComplete  bool
	ContentType ContentType
}

// Passage is an immutable indexed unit of protocol text. Content is never
// mutated in place; a content change produces a new passage id upstream.
type Passage struct {
	ID             uuid.UUID
	ProtocolNumber string
	ProtocolTitle  string
	Section        string
	Content        string
	Embedding      pgvector.Vector
	AgencyName     string
	ImageRefs      []string
	Meta           ChunkMetadata
	CreatedAt      time.Time
}

// SearchResult is a passage found via vector search with its cosine
// similarity to the query embedding, clamped to [0,1].
type SearchResult struct {
	Passage    Passage
	Similarity float32
}

// SearchFilter restricts a vector search with scalar predicates.
type SearchFilter struct {
	// AgencyName, when non-empty, limits results to that agency's corpus.
	AgencyName string
}

// CorpusStats summarizes the indexed corpus.
type CorpusStats struct {
	TotalPassages  int64
	TotalProtocols int64
	Agencies       []string
}

// PassageRepository defines the operations against the passage store.
type PassageRepository interface {
	// Search returns up to k nearest passages by cosine similarity.
	// Results below the caller's threshold are the caller's concern;
	// the repository returns raw similarities.
	Search(ctx context.Context, queryVector []float32, k int, filter SearchFilter) ([]SearchResult, error)

	// BulkInsertPassages inserts passages produced by ingestion.
	BulkInsertPassages(ctx context.Context, passages []Passage) error

	// GetByAgency retrieves all passages for an agency, ordered by
	// protocol number and chunk index.
	GetByAgency(ctx context.Context, agencyName string) ([]Passage, error)

	// Stats returns corpus-level counts.
	Stats(ctx context.Context) (CorpusStats, error)
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// VectorEncoder defines the interface for generating embeddings.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
