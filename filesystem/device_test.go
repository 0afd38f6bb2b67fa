package filesystem_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/brettbedarf/filenode/filesystem"
	"github.com/brettbedarf/filenode/internal/mocks"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockMount(t *testing.T, caps filesystem.Capabilities) (*filesystem.Registry, *mocks.MockDevice) {
	t.Helper()
	reg, _ := newTestRegistry(t)
	dev := &mocks.MockDevice{}
	dev.On("Name").Return("mock").Maybe()
	dev.On("Capabilities").Return(caps).Maybe()
	reg.Mount("/m", dev)
	return reg, dev
}

func TestRefresh_DeviceErrorsAreCoded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  error
		code errors.ErrorCode
	}{
		{"permission", fs.ErrPermission, errors.CodeForbidden},
		{"exists", fs.ErrExist, errors.CodeAlreadyExists},
		{"other", assert.AnError, errors.CodeExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg, dev := newMockMount(t, filesystem.Capabilities{})
			dev.On("Stat", mock.Anything, "/f").Return(filesystem.Props{}, tt.raw)

			err := reg.Get("/m/f").Refresh(context.Background())

			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.ErrorIs(t, err, tt.raw)
			assert.Contains(t, err.Error(), "/m/f")
			dev.AssertExpectations(t)
		})
	}
}

func TestRefresh_MissingIsNotAnError(t *testing.T) {
	t.Parallel()
	reg, dev := newMockMount(t, filesystem.Capabilities{})
	dev.On("Stat", mock.Anything, "/gone").Return(filesystem.Props{}, fs.ErrNotExist)
	n := reg.Get("/m/gone")

	require.NoError(t, n.Refresh(context.Background()))

	assert.True(t, n.IsTested())
	assert.False(t, n.Flags().Has(filesystem.FlagExists))
}

func TestCopyTree_UsesRawDeviceCopy(t *testing.T) {
	t.Parallel()
	reg, dev := newMockMount(t, filesystem.Capabilities{Writable: true, RawCopy: true})
	file := filesystem.Props{Name: "a", Size: 42, ModTime: baseTime, Mode: 0o644}
	copied := file
	copied.Name = "b"
	dev.On("Stat", mock.Anything, "/a").Return(file, nil)
	dev.On("Stat", mock.Anything, "/b").Return(filesystem.Props{}, fs.ErrNotExist).Once()
	dev.On("Copy", mock.Anything, "/a", "/b").Return(nil).Once()
	dev.On("Stat", mock.Anything, "/b").Return(copied, nil)

	p := execute(t, reg, filesystem.NewCommand(filesystem.CmdCopyTree, reg.Get("/m/a"), reg.Get("/m/b")), nil)

	assert.Equal(t, int64(42), p.Snapshot().Bytes)
	assert.Equal(t, int64(1), p.Snapshot().Files)
	assert.Equal(t, int64(42), reg.Get("/m/b").Size())
	dev.AssertExpectations(t)
	dev.AssertNotCalled(t, "OpenRead", mock.Anything, mock.Anything)
}
