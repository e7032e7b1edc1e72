package embedding

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protocol-engine/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func embeddingsResponse(t *testing.T, w http.ResponseWriter, vectors ...[]float32) {
	t.Helper()
	type datum struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]datum, len(vectors))
	for i, v := range vectors {
		data[i] = datum{Embedding: v, Index: i}
	}
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
}

func TestVoyageClient_Encode(t *testing.T) {
	var gotAuth string
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		embeddingsResponse(t, w, []float32{0.1, 0.2}, []float32{0.3, 0.4})
	}))
	defer srv.Close()

	c := NewVoyageClient(srv.URL, "test-key", "voyage-large-2", 100, srv.Client(), discardLogger())

	vectors, err := c.Encode(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "voyage-large-2", gotReq.Model)
	assert.Equal(t, []string{"first", "second"}, gotReq.Input)
}

func TestVoyageClient_RetriesTransientFailureOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		embeddingsResponse(t, w, []float32{1})
	}))
	defer srv.Close()

	c := NewVoyageClient(srv.URL, "k", "voyage-large-2", 100, srv.Client(), discardLogger())

	vectors, err := c.Encode(context.Background(), []string{"text"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestVoyageClient_SecondFailureGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewVoyageClient(srv.URL, "k", "voyage-large-2", 100, srv.Client(), discardLogger())

	_, err := c.Encode(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load(), "exactly one bounded retry")

	var provider *domain.EmbeddingProviderError
	require.ErrorAs(t, err, &provider)
	assert.Equal(t, http.StatusServiceUnavailable, provider.StatusCode)
	assert.True(t, provider.Retryable())
}

func TestVoyageClient_AuthFailureDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewVoyageClient(srv.URL, "bad-key", "voyage-large-2", 100, srv.Client(), discardLogger())

	_, err := c.Encode(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, domain.IsRetryable(err))
}

func TestVoyageClient_TruncatesOversizedInput(t *testing.T) {
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		embeddingsResponse(t, w, []float32{1})
	}))
	defer srv.Close()

	c := NewVoyageClient(srv.URL, "k", "voyage-large-2", 100, srv.Client(), discardLogger())

	long := make([]byte, maxInputChars+500)
	for i := range long {
		long[i] = 'a'
	}
	_, err := c.Encode(context.Background(), []string{string(long)})
	require.NoError(t, err)
	assert.Len(t, gotReq.Input[0], maxInputChars)
}

func TestVoyageClient_EmptyBatch(t *testing.T) {
	c := NewVoyageClient("http://unused", "k", "voyage-large-2", 100, nil, discardLogger())
	vectors, err := c.Encode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestVoyageClient_Version(t *testing.T) {
	c := NewVoyageClient("http://unused", "k", "voyage-large-2", 100, nil, discardLogger())
	assert.Equal(t, "voyage-large-2", c.Version())
}
