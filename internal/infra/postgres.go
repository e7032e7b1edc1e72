package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// PoolConfig holds tunable parameters for the passage-store connection pool.
// Zero fields fall back to defaults sized for a single engine instance:
// retrieval fans out up to three variant searches per request, so the pool
// must hold at least that many connections plus headroom for ingest.
type PoolConfig struct {
	MaxConns int
	MinConns int
}

const (
	defaultMaxConns = 10
	defaultMinConns = 2
)

func (pc PoolConfig) withDefaults() PoolConfig {
	if pc.MaxConns <= 0 {
		pc.MaxConns = defaultMaxConns
	}
	if pc.MinConns <= 0 {
		pc.MinConns = defaultMinConns
	}
	return pc
}

// NewPassageStorePool connects to the protocol passage store and registers
// the pgvector codec on every connection so passage embeddings scan directly
// into pgvector.Vector values. The pool is pinged before returning.
func NewPassageStorePool(ctx context.Context, dsn string, pc PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse passage store dsn: %w", err)
	}

	pc = pc.withDefaults()
	config.MaxConns = int32(pc.MaxConns)
	config.MinConns = int32(pc.MinConns)
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create passage store pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping passage store: %w", err)
	}

	return pool, nil
}
