package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"paustdb/internal/model"
)

type MockPointRepository struct {
	mock.Mock
}

func (m *MockPointRepository) PutBatch(ctx context.Context, recs []model.Record) error {
	args := m.Called(ctx, recs)
	return args.Error(0)
}

func (m *MockPointRepository) Scan(ctx context.Context, q model.RangeQuery) ([]model.Meta, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Meta), args.Error(1)
}

func (m *MockPointRepository) Get(ctx context.Context, ids []model.RowKey) ([]model.Record, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *MockPointRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPointRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
