package filesystem

import (
	"context"
	stderrors "errors"
)

// runMove renames the tree when source and destination share a device and
// nothing is filtered; otherwise it copies and deletes every copied source.
func runMove(ctx context.Context, cmd *Command, p *Progress) error {
	c, err := prepareCopy(ctx, cmd, p, true)
	if err != nil || c == nil {
		return err
	}
	if renamed, err := c.tryRename(); renamed || err != nil {
		return err
	}
	_, err = Walk(ctx, c.srcRoot, cmd.walkOptions(p), c)
	return err
}

// tryRename moves the whole tree with one device rename. It reports false
// when the fast path does not apply.
func (c *copier) tryRename() (bool, error) {
	cmd := c.cmd
	if cmd.Filter != nil || cmd.SelectMask != 0 || cmd.Depth != 0 {
		return false, nil
	}
	src, dst := c.srcRoot, c.dstRoot
	m := src.mount()
	if dst.mount() != m || !m.dev.Capabilities().Rename || src.IsRoot() {
		return false, nil
	}
	if dst.Exists(c.ctx) {
		return false, nil
	}
	if parent := dst.Parent(); parent != nil && !parent.Exists(c.ctx) {
		if err := parent.Mkdir(c.ctx, true); err != nil {
			return false, nil
		}
	}

	marks := MarkData{}
	if !src.IsDirectory() {
		marks = MarkData{Files: 1, Bytes: src.Size()}
	}
	err := src.moveTo(c.ctx, dst)
	if stderrors.Is(err, ErrNotSupported) {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	c.p.visit(dst)
	c.p.selected.Add(int64(marks.Files))
	c.p.files.Add(int64(marks.Files))
	c.p.addBytes(marks.Bytes)
	dst.SetMark(MarkDone)
	c.logger.Debug().Str("src", src.Path()).Str("dst", dst.Path()).Msg("Moved by rename")
	return true, nil
}
