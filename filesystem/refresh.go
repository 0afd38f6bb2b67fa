package filesystem

import (
	"context"
	stderrors "errors"
	"io/fs"
	"strings"
	"time"
)

// Refresh reads the node properties from the device. A missing file is an
// expected condition: the node is flagged as not existing, removed from its
// parent's children and nil is returned.
func (n *Node) Refresh(ctx context.Context) error {
	m := n.mount()
	props, err := m.dev.Stat(ctx, m.devicePath(n.Path()))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			n.markMissing()
			return nil
		}
		return deviceError(err, "stat", n.Path())
	}
	n.applyProps(props)
	return nil
}

// RefreshChildren lists the directory on the device and synchronizes the
// children map. Children not listed anymore are flagged missing and removed.
func (n *Node) RefreshChildren(ctx context.Context) error {
	m := n.mount()
	entries, err := m.dev.List(ctx, m.devicePath(n.Path()))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			n.markMissing()
			n.purgeChildren(nil)
			return nil
		}
		return deviceError(err, "list", n.Path())
	}

	// Pass 1: every known child is pending until the device lists it again
	for _, c := range n.Children() {
		c.setFlags(FlagRefreshPending, 0)
	}
	seen := make(map[*Node]struct{}, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Name == "." || e.Name == ".." || strings.Contains(e.Name, "/") {
			continue
		}
		c := n.reg.Child(n, e.Name)
		c.applyProps(e)
		seen[c] = struct{}{}
	}
	// Pass 2: purge whatever was not seen
	n.purgeChildren(seen)

	now := time.Now()
	n.mu.Lock()
	n.flags |= FlagChildrenTested | FlagDirectory | FlagExists
	n.childrenRefreshed = now
	n.mu.Unlock()
	return nil
}

// RefreshAll refreshes the node properties and, for directories, its children list
func (n *Node) RefreshAll(ctx context.Context) error {
	if err := n.Refresh(ctx); err != nil {
		return err
	}
	if n.IsDirectory() && n.Exists(ctx) {
		return n.RefreshChildren(ctx)
	}
	return nil
}

func (n *Node) purgeChildren(keep map[*Node]struct{}) {
	for _, c := range n.Children() {
		if _, ok := keep[c]; ok {
			continue
		}
		c.markMissing()
	}
}

// Exists reports whether the file exists, reading the device only when the
// node was never tested. Device errors are reported as not existing.
func (n *Node) Exists(ctx context.Context) bool {
	if !n.IsTested() {
		if err := n.Refresh(ctx); err != nil {
			n.reg.logger.Debug().Err(err).Str("path", n.Path()).Msg("Exists refresh failed")
			return false
		}
	}
	return n.Flags().Has(FlagExists)
}

// applyProps stores device properties and links the node below its parent
func (n *Node) applyProps(p Props) {
	flags := FlagExists | FlagTested
	if p.IsDir() {
		flags |= FlagDirectory
	}
	perm := p.Mode.Perm()
	if perm&0o400 != 0 {
		flags |= FlagReadable
	}
	if perm&0o200 != 0 {
		flags |= FlagWritable
	}
	if perm&0o100 != 0 && !p.IsDir() {
		flags |= FlagExecutable
	}
	if p.Symlink {
		flags |= FlagSymlink
	}
	if strings.HasPrefix(n.name, ".") {
		flags |= FlagHidden
	}

	now := time.Now()
	n.mu.Lock()
	p.Name = n.name
	n.props = p
	dirKnown := n.flags & FlagDirectory
	n.flags = n.flags&^(attrFlags|FlagTested|FlagRefreshPending|FlagDirectory) | flags
	if !p.IsDir() && dirKnown != 0 && len(n.children) > 0 {
		// a file replaced a directory; the stale children are unreachable now
		n.children = nil
	}
	n.propsRefreshed = now
	n.mu.Unlock()

	if parent := n.Parent(); parent != nil && !parent.isLinked(n) {
		parent.linkChild(n)
	}
}

// markMissing flags the node as tested and not existing and unlinks it
func (n *Node) markMissing() {
	now := time.Now()
	n.mu.Lock()
	n.flags = n.flags&^(attrFlags|FlagRefreshPending|FlagDirectory|FlagChildrenTested) | FlagTested
	n.props = Props{Name: n.name}
	n.propsRefreshed = now
	n.mu.Unlock()

	if parent := n.Parent(); parent != nil {
		parent.unlinkChild(n)
	}
}
