package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"protocol-engine/internal/domain"
)

type passageRepository struct {
	pool *pgxpool.Pool
}

// NewPassageRepository creates a new PassageRepository over pgvector.
func NewPassageRepository(pool *pgxpool.Pool) domain.PassageRepository {
	return &passageRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *passageRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

// Search returns the k nearest passages by cosine similarity. Cosine
// distance from pgvector is mapped to similarity as 1 - distance. A dead
// connection or unreachable store is classified unavailable, never
// degraded silently.
func (r *passageRepository) Search(ctx context.Context, queryVector []float32, k int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	if len(queryVector) != domain.EmbeddingDim {
		return nil, fmt.Errorf("%w: query has %d dims, corpus uses %d", domain.ErrDimensionMismatch, len(queryVector), domain.EmbeddingDim)
	}

	query := `
		SELECT id, protocol_number, protocol_title, section, content,
		       agency_name, image_refs, chunk_index, total_chunks,
		       is_complete, content_type, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM protocol_passages
		WHERE ($2 = '' OR agency_name = $2)
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, pgvector.NewVector(queryVector), filter.AgencyName, k)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var p domain.Passage
		var similarity float32
		var contentType string
		if err := rows.Scan(passageScanTargets(&p, &contentType, &similarity)...); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		p.Meta.ContentType = domain.ContentType(contentType)
		results = append(results, domain.SearchResult{Passage: p, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(err)
	}
	return results, nil
}

// passageScanTargets keeps the scan destination list next to the column
// list in one place for all row-shaped queries.
func passageScanTargets(p *domain.Passage, contentType *string, similarity *float32) []interface{} {
	targets := []interface{}{
		&p.ID, &p.ProtocolNumber, &p.ProtocolTitle, &p.Section, &p.Content,
		&p.AgencyName, &p.ImageRefs, &p.Meta.ChunkIndex, &p.Meta.TotalChunks,
		&p.Meta.IsComplete, contentType, &p.CreatedAt,
	}
	if similarity != nil {
		targets = append(targets, similarity)
	}
	return targets
}

func (r *passageRepository) BulkInsertPassages(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(passages))
	for i, p := range passages {
		rows[i] = []interface{}{
			p.ID,
			p.ProtocolNumber,
			p.ProtocolTitle,
			p.Section,
			p.Content,
			p.Embedding,
			p.AgencyName,
			p.ImageRefs,
			p.Meta.ChunkIndex,
			p.Meta.TotalChunks,
			p.Meta.IsComplete,
			string(p.Meta.ContentType),
			p.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"protocol_passages"},
		[]string{"id", "protocol_number", "protocol_title", "section", "content", "embedding", "agency_name", "image_refs", "chunk_index", "total_chunks", "is_complete", "content_type", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert passages: %w", err)
	}

	return nil
}

func (r *passageRepository) GetByAgency(ctx context.Context, agencyName string) ([]domain.Passage, error) {
	query := `
		SELECT id, protocol_number, protocol_title, section, content,
		       agency_name, image_refs, chunk_index, total_chunks,
		       is_complete, content_type, created_at
		FROM protocol_passages
		WHERE agency_name = $1
		ORDER BY protocol_number ASC, chunk_index ASC
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, agencyName)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	defer rows.Close()

	var passages []domain.Passage
	for rows.Next() {
		var p domain.Passage
		var contentType string
		if err := rows.Scan(passageScanTargets(&p, &contentType, nil)...); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		p.Meta.ContentType = domain.ContentType(contentType)
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStoreError(err)
	}
	return passages, nil
}

func (r *passageRepository) Stats(ctx context.Context) (domain.CorpusStats, error) {
	var stats domain.CorpusStats

	row := r.getExecutor(ctx).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT protocol_number)
		FROM protocol_passages
	`)
	if err := row.Scan(&stats.TotalPassages, &stats.TotalProtocols); err != nil {
		return domain.CorpusStats{}, classifyStoreError(err)
	}

	rows, err := r.getExecutor(ctx).Query(ctx, `
		SELECT DISTINCT agency_name FROM protocol_passages ORDER BY agency_name
	`)
	if err != nil {
		return domain.CorpusStats{}, classifyStoreError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var agency string
		if err := rows.Scan(&agency); err != nil {
			return domain.CorpusStats{}, fmt.Errorf("failed to scan agency: %w", err)
		}
		stats.Agencies = append(stats.Agencies, agency)
	}
	if err := rows.Err(); err != nil {
		return domain.CorpusStats{}, classifyStoreError(err)
	}
	return stats, nil
}

// classifyStoreError wraps connectivity failures as RetrievalUnavailable so
// the caller can surface a retryable hint. Query-shaped errors pass through
// wrapped.
func classifyStoreError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domain.RetrievalUnavailableError{Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// A server-reported error means the store is reachable.
		return fmt.Errorf("passage store query failed: %w", err)
	}
	// Anything else (dial failure, broken pool, closed connection) means
	// the store is unreachable.
	return &domain.RetrievalUnavailableError{Err: err}
}
