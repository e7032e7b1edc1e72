// Package httpapi exposes the retrieval engine over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"protocol-engine/internal/cache"
	"protocol-engine/internal/domain"
	"protocol-engine/internal/infra/logger"
	"protocol-engine/internal/metrics"
	"protocol-engine/internal/usecase"
)

// Handler carries the usecases behind the HTTP surface.
type Handler struct {
	retrieveUsecase usecase.RetrievePassagesUsecase
	repo            domain.PassageRepository
	embCache        *cache.EmbeddingCache
	monitor         *metrics.LatencyMonitor
	ctxLogger       *logger.ContextLogger
}

// NewHandler wires the HTTP handler.
func NewHandler(
	retrieveUsecase usecase.RetrievePassagesUsecase,
	repo domain.PassageRepository,
	embCache *cache.EmbeddingCache,
	monitor *metrics.LatencyMonitor,
) *Handler {
	return &Handler{
		retrieveUsecase: retrieveUsecase,
		repo:            repo,
		embCache:        embCache,
		monitor:         monitor,
		ctxLogger:       logger.NewContextLogger("protocol-engine"),
	}
}

// Register mounts all routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/v1/health", h.Health)
	e.GET("/v1/search", h.Search)
	e.GET("/v1/protocols/stats", h.Stats)
	e.GET("/v1/protocols/agency/:name", h.ByAgency)
}

// errorResponse is the wire form of the error taxonomy: code plus a
// retryable hint for the caller's retry prompt.
type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// passageResult is the wire form of one ranked passage.
type passageResult struct {
	ID             string   `json:"id"`
	ProtocolNumber string   `json:"protocolNumber"`
	ProtocolTitle  string   `json:"protocolTitle"`
	Section        string   `json:"section"`
	Content        string   `json:"content"`
	AgencyName     string   `json:"agencyName"`
	ImageRefs      []string `json:"imageRefs,omitempty"`
	ContentType    string   `json:"contentType"`
	Similarity     float32  `json:"similarity"`
	Score          float64  `json:"score"`
	QueryVariant   string   `json:"queryVariant"`
}

type searchResponse struct {
	Query      string          `json:"query"`
	Normalized string          `json:"normalized"`
	Intent     string          `json:"intent"`
	IsEmergent bool            `json:"isEmergent"`
	ModelClass string          `json:"modelClass"`
	Results    []passageResult `json:"results"`
	// RephraseHint is set when nothing cleared the similarity threshold.
	RephraseHint string `json:"rephraseHint,omitempty"`
}

// Search runs the full retrieval pipeline for one query.
// (GET /v1/search?query=...&tier=...&agency=...)
func (h *Handler) Search(ctx echo.Context) error {
	input := usecase.RetrievePassagesInput{
		Query:      ctx.QueryParam("query"),
		Tier:       domain.UserTier(ctx.QueryParam("tier")),
		AgencyName: ctx.QueryParam("agency"),
	}

	reqCtx := ctx.Request().Context()
	if rid := ctx.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
		reqCtx = context.WithValue(reqCtx, logger.RequestIDKey, rid)
	}
	if input.AgencyName != "" {
		reqCtx = context.WithValue(reqCtx, logger.AgencyKey, input.AgencyName)
	}

	output, err := h.retrieveUsecase.Execute(reqCtx, input)
	if err != nil {
		return writeError(ctx, err)
	}

	results := make([]passageResult, 0, len(output.Results))
	for _, r := range output.Results {
		results = append(results, passageResult{
			ID:             r.Passage.ID.String(),
			ProtocolNumber: r.Passage.ProtocolNumber,
			ProtocolTitle:  r.Passage.ProtocolTitle,
			Section:        r.Passage.Section,
			Content:        r.Passage.Content,
			AgencyName:     r.Passage.AgencyName,
			ImageRefs:      r.Passage.ImageRefs,
			ContentType:    string(r.Passage.Meta.ContentType),
			Similarity:     r.Similarity,
			Score:          r.RerankedScore,
			QueryVariant:   r.SourceQueryVariant,
		})
	}

	resp := searchResponse{
		Query:      output.Query.Original,
		Normalized: output.Query.Normalized,
		Intent:     string(output.Query.Intent),
		IsEmergent: output.Query.IsEmergent,
		ModelClass: string(output.ModelClass),
		Results:    results,
	}
	if len(results) == 0 {
		resp.RephraseHint = "No matching protocol passages found. Try rephrasing with the full medication or condition name."
	}

	h.ctxLogger.WithContext(reqCtx).Info("search_completed",
		slog.String(string(logger.QueryIntentKey), string(output.Query.Intent)),
		slog.Int("result_count", len(results)))

	return ctx.JSON(http.StatusOK, resp)
}

// Stats reports corpus counts plus cache and latency observability.
// (GET /v1/protocols/stats)
func (h *Handler) Stats(ctx echo.Context) error {
	corpus, err := h.repo.Stats(ctx.Request().Context())
	if err != nil {
		return writeError(ctx, err)
	}
	cacheStats := h.embCache.Stats()
	total := h.monitor.Percentiles(metrics.StageTotalRetrieval)

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"totalPassages":  corpus.TotalPassages,
		"totalProtocols": corpus.TotalProtocols,
		"agencies":       corpus.Agencies,
		"cache": map[string]interface{}{
			"size":    cacheStats.Size,
			"maxSize": cacheStats.MaxSize,
			"hits":    cacheStats.Hits,
			"misses":  cacheStats.Misses,
		},
		"latency": map[string]interface{}{
			"p50Ms":   total.P50.Milliseconds(),
			"p95Ms":   total.P95.Milliseconds(),
			"p99Ms":   total.P99.Milliseconds(),
			"samples": total.Samples,
		},
	})
}

// ByAgency lists an agency's indexed passages.
// (GET /v1/protocols/agency/:name)
func (h *Handler) ByAgency(ctx echo.Context) error {
	passages, err := h.repo.GetByAgency(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return writeError(ctx, err)
	}
	results := make([]passageResult, 0, len(passages))
	for _, p := range passages {
		results = append(results, passageResult{
			ID:             p.ID.String(),
			ProtocolNumber: p.ProtocolNumber,
			ProtocolTitle:  p.ProtocolTitle,
			Section:        p.Section,
			Content:        p.Content,
			AgencyName:     p.AgencyName,
			ImageRefs:      p.ImageRefs,
			ContentType:    string(p.Meta.ContentType),
		})
	}
	return ctx.JSON(http.StatusOK, map[string]interface{}{"passages": results})
}

// Health reports liveness.
// (GET /v1/health)
func (h *Handler) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeError maps the error taxonomy to HTTP statuses.
func writeError(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return ctx.JSON(http.StatusBadRequest, errorResponse{
			Error: err.Error(), Code: "invalid_query", Retryable: false,
		})
	default:
	}

	var unavailable *domain.RetrievalUnavailableError
	if errors.As(err, &unavailable) {
		return ctx.JSON(http.StatusServiceUnavailable, errorResponse{
			Error: err.Error(), Code: "retrieval_unavailable", Retryable: true,
		})
	}
	var provider *domain.EmbeddingProviderError
	if errors.As(err, &provider) {
		status := http.StatusBadGateway
		if !provider.Retryable() {
			status = http.StatusInternalServerError
		}
		return ctx.JSON(status, errorResponse{
			Error: err.Error(), Code: "embedding_provider_error", Retryable: provider.Retryable(),
		})
	}
	return ctx.JSON(http.StatusInternalServerError, errorResponse{
		Error: err.Error(), Code: "internal", Retryable: domain.IsRetryable(err),
	})
}
