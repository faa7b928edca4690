package mocks

import (
	"context"

	"github.com/brettbedarf/vfs"
	"github.com/stretchr/testify/mock"
)

// MockSnapshotter implements vfs.Snapshotter for testing across packages
type MockSnapshotter struct {
	mock.Mock
}

func (m *MockSnapshotter) Snapshot(ctx context.Context, path string) (*vfs.Snapshot, error) {
	args := m.Called(ctx, path)

	// Handle function return types (for tests that build the snapshot per call)
	if fn, ok := args.Get(0).(func(context.Context, string) *vfs.Snapshot); ok {
		return fn(ctx, path), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vfs.Snapshot), args.Error(1)
}

var _ vfs.Snapshotter = (*MockSnapshotter)(nil)

// MockVisitor implements vfs.Visitor and vfs.PostVisitor for testing across packages
type MockVisitor struct {
	mock.Mock
}

func (m *MockVisitor) Visit(path string, snapshot *vfs.Snapshot) bool {
	args := m.Called(path, snapshot)
	return args.Bool(0)
}

func (m *MockVisitor) PostVisit(path string, snapshot *vfs.Snapshot) {
	m.Called(path, snapshot)
}

var (
	_ vfs.Visitor     = (*MockVisitor)(nil)
	_ vfs.PostVisitor = (*MockVisitor)(nil)
)

// MockProvider implements snapshotters.Provider for testing across packages
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) NewSnapshotter(raw []byte) (vfs.Snapshotter, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(vfs.Snapshotter), args.Error(1)
}
