package server

import (
	"context"
	"io"
	"sync"
	"syscall"

	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

type readStream = io.ReadCloser

// readHandle serves reads at arbitrary offsets from a sequential stream.
// Streams implementing io.ReaderAt are read directly; others are reopened
// and skipped forward when a read goes backwards.
type readHandle struct {
	open func() (readStream, error)

	mu  sync.Mutex
	r   readStream
	pos int64
}

var (
	_ gofs.FileReader   = (*readHandle)(nil)
	_ gofs.FileReleaser = (*readHandle)(nil)
)

func newReadHandle(open func() (readStream, error)) *readHandle {
	return &readHandle{open: open}
}

// reopen replaces the stream with a fresh one positioned at 0
func (h *readHandle) reopen() error {
	if h.r != nil {
		h.r.Close()
		h.r = nil
	}
	r, err := h.open()
	if err != nil {
		return err
	}
	h.r, h.pos = r, 0
	return nil
}

func (h *readHandle) readAt(dest []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.r == nil {
		if err := h.reopen(); err != nil {
			return 0, err
		}
	}
	if ra, ok := h.r.(io.ReaderAt); ok {
		return ra.ReadAt(dest, off)
	}
	if off < h.pos {
		if err := h.reopen(); err != nil {
			return 0, err
		}
	}
	if off > h.pos {
		skipped, err := io.CopyN(io.Discard, h.r, off-h.pos)
		h.pos += skipped
		if err != nil {
			return 0, err
		}
	}
	n, err := io.ReadFull(h.r, dest)
	h.pos += int64(n)
	return n, err
}

func (h *readHandle) Read(_ context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.readAt(dest, off)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *readHandle) Release(context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.r != nil {
		h.r.Close()
		h.r = nil
	}
	return 0
}
