package usecase

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
	switch v := args.Get(0).(type) {
	case nil:
		return nil, args.Error(1)
	case func(context.Context, []string) [][]float32:
		return v(ctx, texts), args.Error(1)
	default:
		return v.([][]float32), args.Error(1)
	}
}

func (m *MockVectorEncoder) Version() string {
	return m.Called().String(0)
}

type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}
