package server

import (
	stderrors "errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/devices"
	"github.com/brettbedarf/filenode/filesystem"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mtime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T, files map[string]string) *filesystem.Registry {
	t.Helper()
	mem := devices.NewMemoryDevice("mem")
	afs := mem.Fs()
	for p, content := range files {
		require.NoError(t, afs.MkdirAll(path.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(afs, p, []byte(content), 0o644))
		require.NoError(t, afs.Chtimes(p, mtime, mtime))
	}
	reg := filesystem.NewRegistry(config.NewDefaultConfig(), mem)
	t.Cleanup(reg.Close)
	return reg
}

func TestToErrno(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{"nil", nil, 0},
		{"not_found", fs.ErrNotExist, syscall.ENOENT},
		{"permission", fs.ErrPermission, syscall.EACCES},
		{"not_supported", filesystem.ErrNotSupported, syscall.ENOTSUP},
		{"other", stderrors.New("boom"), syscall.EIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toErrno(tt.err))
		})
	}
}

func TestGetattr(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t, map[string]string{"/d/f.txt": "hello"})
	ctx := t.Context()

	var out fuse.AttrOut
	errno := newNode(reg.Get("/d/f.txt")).Getattr(ctx, nil, &out)
	require.Zero(t, errno)
	assert.Equal(t, uint32(syscall.S_IFREG|0o444), out.Mode)
	assert.Equal(t, uint64(5), out.Size)
	assert.Equal(t, uint64(mtime.Unix()), out.Mtime)

	out = fuse.AttrOut{}
	errno = newNode(reg.Get("/d")).Getattr(ctx, nil, &out)
	require.Zero(t, errno)
	assert.Equal(t, uint32(syscall.S_IFDIR), out.Mode&syscall.S_IFMT)
	assert.Zero(t, out.Mode&0o222, "mount is read-only")

	errno = newNode(reg.Get("/missing")).Getattr(ctx, nil, &out)
	assert.Equal(t, syscall.ENOENT, errno)
}

func TestReaddir(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t, map[string]string{
		"/d/b.txt":     "b",
		"/d/a.txt":     "a",
		"/d/sub/c.txt": "c",
	})
	ctx := t.Context()
	dir := reg.Get("/d")
	require.NoError(t, dir.Refresh(ctx))

	stream, errno := newNode(dir).Readdir(ctx)
	require.Zero(t, errno)
	var names []string
	var modes []uint32
	for stream.HasNext() {
		e, errno := stream.Next()
		require.Zero(t, errno)
		names = append(names, e.Name)
		modes = append(modes, e.Mode)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names)
	assert.Equal(t, []uint32{syscall.S_IFREG, syscall.S_IFREG, syscall.S_IFDIR}, modes)

	file := reg.Get("/d/a.txt")
	require.NoError(t, file.Refresh(ctx))
	_, errno = newNode(file).Readdir(ctx)
	assert.Equal(t, syscall.ENOTDIR, errno)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t, map[string]string{"/f.txt": "hello"})
	ctx := t.Context()
	file := reg.Get("/f.txt")
	require.NoError(t, file.Refresh(ctx))
	node := newNode(file)

	_, _, errno := node.Open(ctx, syscall.O_WRONLY)
	assert.Equal(t, syscall.EROFS, errno)

	fh, _, errno := node.Open(ctx, syscall.O_RDONLY)
	require.Zero(t, errno)
	h, ok := fh.(*readHandle)
	require.True(t, ok)

	res, errno := h.Read(ctx, make([]byte, 16), 2)
	require.Zero(t, errno)
	data, _ := res.Bytes(nil)
	assert.Equal(t, "llo", string(data))
	assert.Zero(t, h.Release(ctx))

	_, _, errno = newNode(reg.Get("/missing.txt")).Open(ctx, syscall.O_RDONLY)
	assert.Equal(t, syscall.ENOENT, errno)
}

func TestReadHandle_ReopensForBackwardReads(t *testing.T) {
	t.Parallel()
	opens := 0
	h := newReadHandle(func() (readStream, error) {
		opens++
		// NopCloser hides io.ReaderAt so the sequential path is used
		return io.NopCloser(strings.NewReader("0123456789")), nil
	})
	ctx := t.Context()

	read := func(off int64, size int) string {
		res, errno := h.Read(ctx, make([]byte, size), off)
		require.Zero(t, errno)
		data, _ := res.Bytes(nil)
		return string(data)
	}

	assert.Equal(t, "012", read(0, 3))
	assert.Equal(t, "345", read(3, 3))
	assert.Equal(t, 1, opens, "sequential reads share one stream")
	assert.Equal(t, "12", read(1, 2))
	assert.Equal(t, 2, opens)
	assert.Equal(t, "89", read(8, 4))
	assert.Equal(t, "", read(20, 4))
	assert.Zero(t, h.Release(ctx))
}

func TestRefreshChildren_ListingTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ttl  time.Duration
		want []string
	}{
		{"cached", time.Hour, []string{"a.txt"}},
		{"expired", 0, []string{"a.txt", "b.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mem := devices.NewMemoryDevice("mem")
			afs := mem.Fs()
			require.NoError(t, afs.MkdirAll("/d", 0o755))
			require.NoError(t, afero.WriteFile(afs, "/d/a.txt", []byte("a"), 0o644))
			cfg := config.NewDefaultConfig()
			cfg.ListingTTL = tt.ttl
			reg := filesystem.NewRegistry(cfg, mem)
			t.Cleanup(reg.Close)
			ctx := t.Context()
			dir := reg.Get("/d")
			node := newNode(dir)

			require.Zero(t, node.refreshChildren(ctx))
			require.NoError(t, afero.WriteFile(afs, "/d/b.txt", []byte("b"), 0o644))
			require.Zero(t, node.refreshChildren(ctx))

			var names []string
			for _, c := range dir.Children() {
				names = append(names, c.Name())
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
