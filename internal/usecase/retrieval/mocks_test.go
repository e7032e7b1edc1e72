package retrieval

import (
	"context"

	"github.com/stretchr/testify/mock"

	"protocol-engine/internal/domain"
)

type MockPassageRepository struct {
	mock.Mock
}

func (m *MockPassageRepository) Search(ctx context.Context, queryVector []float32, k int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	args := m.Called(ctx, queryVector, k, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *MockPassageRepository) BulkInsertPassages(ctx context.Context, passages []domain.Passage) error {
	args := m.Called(ctx, passages)
	return args.Error(0)
}

func (m *MockPassageRepository) GetByAgency(ctx context.Context, agencyName string) ([]domain.Passage, error) {
	args := m.Called(ctx, agencyName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Passage), args.Error(1)
}

func (m *MockPassageRepository) Stats(ctx context.Context) (domain.CorpusStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.CorpusStats), args.Error(1)
}

type MockVectorEncoder struct {
	mock.Mock
}

func (m *MockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockVectorEncoder) Version() string {
	return m.Called().String(0)
}
