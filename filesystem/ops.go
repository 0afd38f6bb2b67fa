package filesystem

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// Walk traverses the subtree below n, see [Walk]
func (n *Node) Walk(ctx context.Context, opts WalkOptions, v Visitor) (VisitResult, error) {
	return Walk(ctx, n, opts, v)
}

// OpenRead opens the file for reading
func (n *Node) OpenRead(ctx context.Context) (io.ReadCloser, error) {
	m := n.mount()
	rc, err := m.dev.OpenRead(ctx, m.devicePath(n.Path()))
	if err != nil {
		return nil, deviceError(err, "open", n.Path())
	}
	return rc, nil
}

// OpenWrite creates or truncates the file. The node is refreshed when the
// returned writer is closed.
func (n *Node) OpenWrite(ctx context.Context) (io.WriteCloser, error) {
	m := n.mount()
	wc, err := m.dev.OpenWrite(ctx, m.devicePath(n.Path()))
	if err != nil {
		return nil, deviceError(err, "create", n.Path())
	}
	return &refreshingWriter{WriteCloser: wc, ctx: ctx, n: n}, nil
}

type refreshingWriter struct {
	io.WriteCloser
	ctx context.Context
	n   *Node
}

func (w *refreshingWriter) Close() error {
	if err := w.WriteCloser.Close(); err != nil {
		return deviceError(err, "close", w.n.Path())
	}
	return w.n.Refresh(w.ctx)
}

// Mkdir creates the directory on the device. With recursive set missing
// parents are created too and refreshed afterwards.
func (n *Node) Mkdir(ctx context.Context, recursive bool) error {
	m := n.mount()
	if err := m.dev.Mkdir(ctx, m.devicePath(n.Path()), recursive); err != nil {
		return deviceError(err, "mkdir", n.Path())
	}
	for cur := n; cur != nil && !cur.IsRoot(); cur = cur.Parent() {
		if cur != n && cur.Flags().Has(FlagExists|FlagTested) {
			break
		}
		if err := cur.Refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the file or empty directory from the device
func (n *Node) Delete(ctx context.Context) error {
	m := n.mount()
	if err := m.dev.Delete(ctx, m.devicePath(n.Path())); err != nil {
		return deviceError(err, "delete", n.Path())
	}
	n.invalidate()
	return nil
}

// Rename gives the node a new name in the same directory and returns the node
// of the new path
func (n *Node) Rename(ctx context.Context, name string) (*Node, error) {
	if n.IsRoot() {
		return nil, deviceError(fs.ErrInvalid, "rename", n.Path())
	}
	dst := n.reg.Get(joinPath(n.dir, name))
	if err := n.moveTo(ctx, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// moveTo renames the node onto dst within the same device
func (n *Node) moveTo(ctx context.Context, dst *Node) error {
	m := n.mount()
	if dst.mount() != m {
		return ErrNotSupported
	}
	if err := m.dev.Rename(ctx, m.devicePath(n.Path()), m.devicePath(dst.Path())); err != nil {
		return deviceError(err, "rename", n.Path())
	}
	n.invalidate()
	return dst.RefreshAll(ctx)
}

// SetModTime sets the modification time on the device
func (n *Node) SetModTime(ctx context.Context, t time.Time) error {
	m := n.mount()
	if err := m.dev.SetModTime(ctx, m.devicePath(n.Path()), t); err != nil {
		return deviceError(err, "chtimes", n.Path())
	}
	return n.Refresh(ctx)
}

// Chmod sets the permission bits on the device
func (n *Node) Chmod(ctx context.Context, mode fs.FileMode) error {
	m := n.mount()
	if err := m.dev.Chmod(ctx, m.devicePath(n.Path()), mode); err != nil {
		return deviceError(err, "chmod", n.Path())
	}
	return n.Refresh(ctx)
}

// invalidate flags the node and its known descendants as missing
func (n *Node) invalidate() {
	for _, c := range n.Children() {
		c.invalidate()
	}
	n.markMissing()
}

// isMountRoot reports whether the node is the prefix directory of its mount
func (n *Node) isMountRoot() bool {
	return n.Path() == n.mount().prefix
}
