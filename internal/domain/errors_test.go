package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"protocol-engine/internal/domain"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil_chain", errors.New("plain"), false},
		{"invalid_query", fmt.Errorf("%w: empty", domain.ErrInvalidQuery), false},
		{"store_unavailable", &domain.RetrievalUnavailableError{Err: errors.New("refused")}, true},
		{"wrapped_unavailable", fmt.Errorf("search: %w", &domain.RetrievalUnavailableError{Err: errors.New("refused")}), true},
		{"transient_provider", &domain.EmbeddingProviderError{StatusCode: 429, Transient: true}, true},
		{"permanent_provider", &domain.EmbeddingProviderError{StatusCode: 401, Transient: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsRetryable(tt.err))
		})
	}
}

func TestEmbeddingProviderError_Message(t *testing.T) {
	err := &domain.EmbeddingProviderError{StatusCode: 503, Transient: true, Err: errors.New("overloaded")}
	assert.Contains(t, err.Error(), "503")
	assert.ErrorContains(t, err, "overloaded")
}
