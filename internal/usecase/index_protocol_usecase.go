package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"protocol-engine/internal/domain"
)

// IndexProtocolInput is one protocol document to chunk, embed, and index.
type IndexProtocolInput struct {
	ProtocolNumber string
	ProtocolTitle  string
	AgencyName     string
	Content        string
	ImageRefs      []string
}

// IndexProtocolOutput reports what was indexed.
type IndexProtocolOutput struct {
	PassageCount int
	ChunkerUsed  domain.ChunkerVersion
}

// IndexProtocolUsecase defines the ingestion-time indexing operation.
type IndexProtocolUsecase interface {
	Execute(ctx context.Context, input IndexProtocolInput) (*IndexProtocolOutput, error)
}

type indexProtocolUsecase struct {
	repo      domain.PassageRepository
	txManager domain.TransactionManager
	chunker   domain.Chunker
	encoder   domain.VectorEncoder
	// embedBatchSize bounds texts per provider call.
	embedBatchSize int
	logger         *slog.Logger
}

// NewIndexProtocolUsecase wires the ingestion path.
func NewIndexProtocolUsecase(
	repo domain.PassageRepository,
	txManager domain.TransactionManager,
	chunker domain.Chunker,
	encoder domain.VectorEncoder,
	logger *slog.Logger,
) IndexProtocolUsecase {
	return &indexProtocolUsecase{
		repo:           repo,
		txManager:      txManager,
		chunker:        chunker,
		encoder:        encoder,
		embedBatchSize: 32,
		logger:         logger,
	}
}

func (u *indexProtocolUsecase) Execute(ctx context.Context, input IndexProtocolInput) (*IndexProtocolOutput, error) {
	if input.ProtocolNumber == "" || input.AgencyName == "" {
		return nil, fmt.Errorf("protocol number and agency name are required")
	}

	chunks, err := u.chunker.Chunk(input.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk protocol %s: %w", input.ProtocolNumber, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("protocol %s has no indexable content", input.ProtocolNumber)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += u.embedBatchSize {
		end := start + u.embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := u.encoder.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d..%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(batch))
		}
		embeddings = append(embeddings, batch...)
	}
	for i, emb := range embeddings {
		if len(emb) != domain.EmbeddingDim {
			return nil, fmt.Errorf("%w: chunk %d got %d, corpus uses %d", domain.ErrDimensionMismatch, i, len(emb), domain.EmbeddingDim)
		}
	}

	now := time.Now().UTC()
	passages := make([]domain.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = domain.Passage{
			ID:             uuid.New(),
			ProtocolNumber: input.ProtocolNumber,
			ProtocolTitle:  input.ProtocolTitle,
			Section:        c.Section,
			Content:        c.Content,
			Embedding:      pgvector.NewVector(embeddings[i]),
			AgencyName:     input.AgencyName,
			ImageRefs:      input.ImageRefs,
			Meta:           c.Meta,
			CreatedAt:      now,
		}
	}

	err = u.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return u.repo.BulkInsertPassages(txCtx, passages)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index protocol %s: %w", input.ProtocolNumber, err)
	}

	u.logger.Info("protocol_indexed",
		slog.String("protocol_number", input.ProtocolNumber),
		slog.String("agency", input.AgencyName),
		slog.Int("passage_count", len(passages)),
		slog.String("chunker_version", string(u.chunker.Version())))

	return &IndexProtocolOutput{
		PassageCount: len(passages),
		ChunkerUsed:  u.chunker.Version(),
	}, nil
}
