package server

import (
	"context"
	stderrors "errors"
	"syscall"
	"time"

	"github.com/brettbedarf/filenode/filesystem"
	"github.com/brettbedarf/filenode/internal/util"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fuseNode maps one registry node into the kernel inode tree
type fuseNode struct {
	gofs.Inode
	n *filesystem.Node
}

var (
	_ gofs.InodeEmbedder = (*fuseNode)(nil)
	_ gofs.NodeGetattrer = (*fuseNode)(nil)
	_ gofs.NodeLookuper  = (*fuseNode)(nil)
	_ gofs.NodeReaddirer = (*fuseNode)(nil)
	_ gofs.NodeOpener    = (*fuseNode)(nil)
)

func newNode(n *filesystem.Node) *fuseNode {
	return &fuseNode{n: n}
}

// toErrno maps node errors to kernel error numbers
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case filesystem.IsNotFound(err):
		return syscall.ENOENT
	case filesystem.IsPermission(err):
		return syscall.EACCES
	case stderrors.Is(err, filesystem.ErrNotSupported):
		return syscall.ENOTSUP
	default:
		return syscall.EIO
	}
}

// fileMode returns the kernel mode of n, always without write bits
func fileMode(n *filesystem.Node) uint32 {
	perm := uint32(n.Mode().Perm()) &^ 0o222
	if n.IsDirectory() {
		if perm == 0 {
			perm = 0o555
		}
		return syscall.S_IFDIR | perm
	}
	if perm == 0 {
		perm = 0o444
	}
	return syscall.S_IFREG | perm
}

func fillAttr(n *filesystem.Node, out *fuse.Attr) {
	out.Mode = fileMode(n)
	out.Nlink = 1
	if !n.IsDirectory() {
		out.Size = uint64(n.Size())
		out.Blocks = (out.Size + 511) / 512
	}
	mtime := n.ModTime()
	out.SetTimes(nil, &mtime, &mtime)
	if at := n.AccessTime(); !at.IsZero() {
		out.SetTimes(&at, nil, nil)
	} else {
		out.SetTimes(&mtime, nil, nil)
	}
	out.Blksize = 4096
}

// ensureTested refreshes the node properties on first use
func (f *fuseNode) ensureTested(ctx context.Context) syscall.Errno {
	if f.n.IsTested() {
		return 0
	}
	return toErrno(f.n.Refresh(ctx))
}

func (f *fuseNode) Getattr(ctx context.Context, _ gofs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if errno := f.ensureTested(ctx); errno != 0 {
		return errno
	}
	if !f.n.Flags().Has(filesystem.FlagExists) {
		return syscall.ENOENT
	}
	fillAttr(f.n, &out.Attr)
	return 0
}

// refreshChildren lists the directory when never listed or stale
func (f *fuseNode) refreshChildren(ctx context.Context) syscall.Errno {
	n := f.n
	if n.Flags().Has(filesystem.FlagChildrenTested) && time.Since(n.ChildrenRefreshed()) < n.Registry().Config().ListingTTL {
		return 0
	}
	err := n.RefreshChildren(ctx)
	if stderrors.Is(err, filesystem.ErrNotSupported) {
		// devices without listing still serve explicitly looked up children
		return 0
	}
	return toErrno(err)
}

func (f *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofs.Inode, syscall.Errno) {
	logger := util.GetLogger("Fuse.Lookup")
	if errno := f.refreshChildren(ctx); errno != 0 {
		return nil, errno
	}
	child, ok := f.n.Child(name)
	if !ok {
		// not listed; ask the device directly
		child = f.n.Registry().Child(f.n, name)
		if err := child.Refresh(ctx); err != nil {
			return nil, toErrno(err)
		}
	}
	if !child.Exists(ctx) {
		return nil, syscall.ENOENT
	}
	logger.Trace().Str("path", child.Path()).Msg("Lookup")

	fillAttr(child, &out.Attr)
	stable := gofs.StableAttr{Mode: out.Mode & syscall.S_IFMT}
	return f.NewInode(ctx, newNode(child), stable), 0
}

func (f *fuseNode) Readdir(ctx context.Context) (gofs.DirStream, syscall.Errno) {
	if !f.n.IsDirectory() {
		return nil, syscall.ENOTDIR
	}
	if errno := f.refreshChildren(ctx); errno != 0 {
		return nil, errno
	}
	children := f.n.Children()
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		if !c.Flags().Has(filesystem.FlagExists) {
			continue
		}
		entries = append(entries, fuse.DirEntry{
			Name: c.Name(),
			Mode: fileMode(c) & syscall.S_IFMT,
		})
	}
	return gofs.NewListDirStream(entries), 0
}

func (f *fuseNode) Open(ctx context.Context, flags uint32) (gofs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return nil, 0, syscall.EROFS
	}
	if f.n.IsDirectory() {
		return nil, 0, syscall.EISDIR
	}
	// the stream outlives the open request
	streamCtx := context.WithoutCancel(ctx)
	h := newReadHandle(func() (readStream, error) {
		return f.n.OpenRead(streamCtx)
	})
	if err := h.reopen(); err != nil {
		return nil, 0, toErrno(err)
	}
	return h, fuse.FOPEN_KEEP_CACHE, 0
}
