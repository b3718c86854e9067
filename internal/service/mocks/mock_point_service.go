package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"paustdb/internal/model"
	"paustdb/internal/service"
)

type MockPointService struct {
	mock.Mock
}

func (m *MockPointService) Put(ctx context.Context, points []model.Point) ([]model.RowKey, error) {
	args := m.Called(ctx, points)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RowKey), args.Error(1)
}

func (m *MockPointService) Query(ctx context.Context, q model.RangeQuery) ([]model.Meta, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Meta), args.Error(1)
}

func (m *MockPointService) Fetch(ctx context.Context, ids [][]byte) ([]model.Record, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Record), args.Error(1)
}

func (m *MockPointService) Archive(ctx context.Context, q model.RangeQuery) (*service.ArchiveResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ArchiveResult), args.Error(1)
}
