package mocks

import (
	"context"
	"io"
	"io/fs"
	"time"

	"github.com/brettbedarf/filenode/filesystem"
	"github.com/stretchr/testify/mock"
)

// MockDevice implements filesystem.Device for testing across packages
type MockDevice struct {
	mock.Mock
}

func (m *MockDevice) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockDevice) Capabilities() filesystem.Capabilities {
	args := m.Called()
	return args.Get(0).(filesystem.Capabilities)
}

func (m *MockDevice) Stat(ctx context.Context, p string) (filesystem.Props, error) {
	args := m.Called(ctx, p)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context, string) filesystem.Props); ok {
		return fn(ctx, p), args.Error(1)
	}
	return args.Get(0).(filesystem.Props), args.Error(1)
}

func (m *MockDevice) List(ctx context.Context, p string) ([]filesystem.Props, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]filesystem.Props), args.Error(1)
}

func (m *MockDevice) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	args := m.Called(ctx, p)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context, string) io.ReadCloser); ok {
		return fn(ctx, p), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockDevice) OpenWrite(ctx context.Context, p string) (io.WriteCloser, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockDevice) Delete(ctx context.Context, p string) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockDevice) Mkdir(ctx context.Context, p string, recursive bool) error {
	return m.Called(ctx, p, recursive).Error(0)
}

func (m *MockDevice) Rename(ctx context.Context, src, dst string) error {
	return m.Called(ctx, src, dst).Error(0)
}

func (m *MockDevice) Copy(ctx context.Context, src, dst string) error {
	return m.Called(ctx, src, dst).Error(0)
}

func (m *MockDevice) SetModTime(ctx context.Context, p string, t time.Time) error {
	return m.Called(ctx, p, t).Error(0)
}

func (m *MockDevice) Chmod(ctx context.Context, p string, mode fs.FileMode) error {
	return m.Called(ctx, p, mode).Error(0)
}

var _ filesystem.Device = (*MockDevice)(nil)
