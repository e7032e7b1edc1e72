// Package cache provides the process-wide embedding cache. It is an
// explicitly owned, injectable component, not a hidden singleton, so tests
// can substitute a fresh instance per run.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the embedding for a cache miss.
type ComputeFunc func(ctx context.Context) ([]float32, error)

// Stats reports cache occupancy and hit counters.
type Stats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
}

// EmbeddingCache memoizes text-to-vector computations keyed by normalized
// text. Eviction is by recency on capacity only: embeddings for a fixed
// text are deterministic and never go stale.
//
// At most one computation is ever in flight per distinct key. Concurrent
// callers for the same key await the first caller's result instead of
// issuing duplicate calls to the rate-limited, per-call-billed provider.
type EmbeddingCache struct {
	lru    *lru.Cache[string, []float32]
	flight singleflight.Group

	maxSize int
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewEmbeddingCache creates a bounded cache holding up to maxSize vectors.
func NewEmbeddingCache(maxSize int) (*EmbeddingCache, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxSize)
	}
	l, err := lru.New[string, []float32](maxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	return &EmbeddingCache{lru: l, maxSize: maxSize}, nil
}

// key hashes normalized text to a stable cache key.
func key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached vector for text, computing it at most
// once under concurrency. A failed compute leaves the key absent so a later
// retry recomputes. The compute runs on a context detached from the
// triggering caller: cancelling one waiter must not fail the others still
// attached to the same flight, so only the provider's own timeout bounds
// the call.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, text string, compute ComputeFunc) ([]float32, error) {
	k := key(text)

	if v, ok := c.lru.Get(k); ok {
		c.hits.Add(1)
		return v, nil
	}

	computeCtx := context.WithoutCancel(ctx)

	c.misses.Add(1)
	v, err, _ := c.flight.Do(k, func() (interface{}, error) {
		// Re-check: a previous flight may have populated the entry
		// between the miss and this closure running.
		if cached, ok := c.lru.Get(k); ok {
			return cached, nil
		}

		vec, err := compute(computeCtx)
		if err != nil {
			return nil, fmt.Errorf("cache compute failed: %w", err)
		}
		c.lru.Add(k, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Clear drops every entry.
func (c *EmbeddingCache) Clear() {
	c.lru.Purge()
}

// Stats returns a snapshot of occupancy and counters.
func (c *EmbeddingCache) Stats() Stats {
	return Stats{
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
