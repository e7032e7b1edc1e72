// Package metrics holds in-process observability sinks: per-stage latency
// sample windows and flat per-request events. Nothing here blocks or
// rejects a request; budget breaches are reported, never enforced.
package metrics

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Stage names recorded by the retrieval pipeline.
const (
	StageEmbedding      = "embedding"
	StageVectorSearch   = "vectorSearch"
	StageRerank         = "rerank"
	StageTotalRetrieval = "totalRetrieval"
)

// Percentiles is an on-demand latency summary for one stage.
type Percentiles struct {
	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
	// Samples is the current window occupancy.
	Samples int
}

// LatencyMonitor keeps a bounded rolling sample window per named stage.
// Safe for concurrent use.
type LatencyMonitor struct {
	mu         sync.Mutex
	windowSize int
	windows    map[string]*ring
}

type ring struct {
	samples []time.Duration
	next    int
	full    bool
}

// NewLatencyMonitor creates a monitor keeping windowSize samples per stage.
func NewLatencyMonitor(windowSize int) *LatencyMonitor {
	if windowSize <= 0 {
		windowSize = 512
	}
	return &LatencyMonitor{
		windowSize: windowSize,
		windows:    make(map[string]*ring),
	}
}

// Record appends one duration sample to the stage's window, evicting the
// oldest sample once the window is full.
func (m *LatencyMonitor) Record(stage string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[stage]
	if !ok {
		w = &ring{samples: make([]time.Duration, m.windowSize)}
		m.windows[stage] = w
	}
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

// Percentiles computes p50/p95/p99 from the stage's current window.
func (m *LatencyMonitor) Percentiles(stage string) Percentiles {
	m.mu.Lock()
	w, ok := m.windows[stage]
	if !ok {
		m.mu.Unlock()
		return Percentiles{}
	}
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	snapshot := make([]time.Duration, n)
	copy(snapshot, w.samples[:n])
	m.mu.Unlock()

	if n == 0 {
		return Percentiles{}
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i] < snapshot[j] })
	return Percentiles{
		P50:     percentile(snapshot, 0.50),
		P95:     percentile(snapshot, 0.95),
		P99:     percentile(snapshot, 0.99),
		Samples: n,
	}
}

// BreachesBudget reports whether the stage's p95 exceeds target. Consulted
// for alerting only; it never cancels requests.
func (m *LatencyMonitor) BreachesBudget(stage string, target time.Duration) bool {
	p := m.Percentiles(stage)
	return p.Samples > 0 && p.P95 > target
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * q)
	return sorted[idx]
}

// RequestEvent is the flat key-value record emitted once per request for
// the external observability system.
type RequestEvent struct {
	RequestID        string
	Intent           string
	IsEmergent       bool
	IsComplex        bool
	Tier             string
	FusionEnabled    bool
	AdvancedRerank   bool
	ModelClass       string
	VariantCount     int
	CandidateCount   int
	ResultCount      int
	CacheHits        uint64
	CacheMisses      uint64
	EmbeddingMs      int64
	VectorSearchMs   int64
	RerankMs         int64
	TotalRetrievalMs int64
}

// Emit writes the event as one structured log record.
func (e RequestEvent) Emit(logger *slog.Logger) {
	logger.Info("retrieval_request_completed",
		slog.String("request_id", e.RequestID),
		slog.String("intent", e.Intent),
		slog.Bool("is_emergent", e.IsEmergent),
		slog.Bool("is_complex", e.IsComplex),
		slog.String("tier", e.Tier),
		slog.Bool("fusion_enabled", e.FusionEnabled),
		slog.Bool("advanced_rerank", e.AdvancedRerank),
		slog.String("model_class", e.ModelClass),
		slog.Int("variant_count", e.VariantCount),
		slog.Int("candidate_count", e.CandidateCount),
		slog.Int("result_count", e.ResultCount),
		slog.Uint64("cache_hits", e.CacheHits),
		slog.Uint64("cache_misses", e.CacheMisses),
		slog.Int64("embedding_ms", e.EmbeddingMs),
		slog.Int64("vector_search_ms", e.VectorSearchMs),
		slog.Int64("rerank_ms", e.RerankMs),
		slog.Int64("total_retrieval_ms", e.TotalRetrievalMs),
	)
}
