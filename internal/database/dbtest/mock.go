// Package dbtest provides a testify mock of database.Interface.
package dbtest

import (
	"context"
	"time"

	"github.com/birbparty/pokenest/internal/database"
	"github.com/stretchr/testify/mock"
)

// MockDatabase is a testify mock of database.Interface.
type MockDatabase struct {
	mock.Mock
}

var _ database.Interface = (*MockDatabase)(nil)

func (m *MockDatabase) GetResource(ctx context.Context, endpoint, id string) (*database.Resource, error) {
	args := m.Called(ctx, endpoint, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Resource), args.Error(1)
}

func (m *MockDatabase) PutResource(ctx context.Context, res *database.Resource) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

func (m *MockDatabase) PutResources(ctx context.Context, resources []*database.Resource) (map[string]error, error) {
	args := m.Called(ctx, resources)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]error), args.Error(1)
}

func (m *MockDatabase) DeleteResource(ctx context.Context, endpoint, id string) error {
	args := m.Called(ctx, endpoint, id)
	return args.Error(0)
}

func (m *MockDatabase) ListResourceIDs(ctx context.Context, endpoint string, offset, limit int) ([]string, error) {
	args := m.Called(ctx, endpoint, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDatabase) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*database.Resource, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*database.Resource), args.Error(1)
}

func (m *MockDatabase) DeleteStale(ctx context.Context, cutoff time.Time, resources []*database.Resource) (int, error) {
	args := m.Called(ctx, cutoff, resources)
	return args.Int(0), args.Error(1)
}

func (m *MockDatabase) SaveDeadLetter(ctx context.Context, dl *database.DeadLetter) (int64, error) {
	args := m.Called(ctx, dl)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MockDatabase) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
