package filesystem

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"

	"github.com/brettbedarf/filenode/internal/metrics"
	"github.com/brettbedarf/filenode/internal/util"
	"github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"
)

// maxCopyAttempts bounds the attempts on one file or directory answered with continue
const maxCopyAttempts = 3

// copier mirrors the selected part of srcRoot below dstRoot. With move set
// the sources are deleted after being copied.
type copier struct {
	ctx     context.Context
	cmd     *Command
	p       *Progress
	srcRoot *Node
	dstRoot *Node
	move    bool
	buf     []byte
	logger  zerolog.Logger
}

func newCopier(ctx context.Context, cmd *Command, p *Progress, move bool) *copier {
	return &copier{
		ctx:     ctx,
		cmd:     cmd,
		p:       p,
		srcRoot: cmd.Src,
		dstRoot: cmd.Dst,
		move:    move,
		buf:     make([]byte, cmd.Src.reg.cfg.CopyBufferSize),
		logger:  util.GetLogger("Copy"),
	}
}

func runCopy(ctx context.Context, cmd *Command, p *Progress) error {
	c, err := prepareCopy(ctx, cmd, p, false)
	if err != nil || c == nil {
		return err
	}
	_, err = Walk(ctx, c.srcRoot, cmd.walkOptions(p), c)
	return err
}

// prepareCopy validates the copy roots. A file source copied onto an existing
// directory lands inside it.
func prepareCopy(ctx context.Context, cmd *Command, p *Progress, move bool) (*copier, error) {
	src, dst := cmd.Src, cmd.Dst
	if err := src.Refresh(ctx); err != nil {
		return nil, err
	}
	if !src.Flags().Has(FlagExists) {
		return nil, deviceError(fs.ErrNotExist, "copy", src.Path())
	}
	if _, inside := relPath(src.Path(), dst.Path()); inside {
		return nil, errors.Newf(errors.CodeInvalidInput, "cannot copy %s into itself (%s)", src, dst)
	}
	if !src.IsDirectory() && dst.Exists(ctx) && dst.IsDirectory() {
		dst = src.reg.Child(dst, src.Name())
	}
	c := newCopier(ctx, cmd, p, move)
	c.dstRoot = dst
	return c, nil
}

// mirror returns the destination node of a source node
func (c *copier) mirror(n *Node) *Node {
	rel, _ := relPath(c.srcRoot.Path(), n.Path())
	if rel == "" {
		return c.dstRoot
	}
	return c.srcRoot.reg.Child(c.dstRoot, rel)
}

func (c *copier) Start(root *Node) {
	c.logger.Debug().Str("src", root.Path()).Str("dst", c.dstRoot.Path()).Bool("move", c.move).Msg("Copy started")
}

func (c *copier) EnterDir(dir *Node, _ int) VisitResult {
	c.p.visit(dir)
	target := c.mirror(dir)
	for attempt := 1; ; attempt++ {
		if err := c.stopped(); err != nil {
			c.p.fail(err)
			return Terminate
		}
		err := c.ensureDir(target)
		if err == nil {
			return Continue
		}
		c.logger.Warn().Err(err).Str("dir", target.Path()).Int("attempt", attempt).Msg("Create failed")
		switch a := c.p.ask(c.ctx, AskCreateError, dir.Path(), target.Path(), err); a {
		case AnswerContinue, AnswerOverwrite:
			if c.retry(attempt) {
				continue
			}
			c.p.fail(err)
			return SkipSubtree
		case AnswerAbortDir:
			c.p.fail(err)
			return SkipSiblings
		case AnswerAbortAll:
			c.p.fail(err)
			return Terminate
		default:
			c.p.fail(err)
			return SkipSubtree
		}
	}
}

// stopped returns the reason the command must not go on, if any
func (c *copier) stopped() error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	if c.p.Aborted() {
		return ErrAborted
	}
	return nil
}

// retry reports whether a continue answer allows another attempt. A default
// answer taken without a sink never retries.
func (c *copier) retry(attempt int) bool {
	return c.p.interactive() && attempt < maxCopyAttempts
}

// ensureDir creates target when missing and refreshes its children
func (c *copier) ensureDir(target *Node) error {
	if err := target.Refresh(c.ctx); err != nil {
		return err
	}
	if target.Flags().Has(FlagExists) {
		if !target.IsDirectory() {
			return deviceError(fs.ErrExist, "mkdir", target.Path())
		}
		return target.RefreshChildren(c.ctx)
	}
	return target.Mkdir(c.ctx, true)
}

func (c *copier) VisitFile(file *Node, _ int) VisitResult {
	c.p.visit(file)
	c.p.selected.Add(1)
	target := c.mirror(file)
	if !target.IsTested() {
		if err := target.Refresh(c.ctx); err != nil {
			c.logger.Debug().Err(err).Str("path", target.Path()).Msg("Destination refresh failed")
		}
	}

	if target.Flags().Has(FlagExists) {
		if r, proceed := c.resolveExisting(file, target); !proceed {
			return r
		}
	}

	for attempt := 1; ; attempt++ {
		if err := c.stopped(); err != nil {
			c.p.fail(err)
			return Terminate
		}
		err := c.copyFile(file, target)
		if err == nil {
			break
		}
		c.logger.Warn().Err(err).Str("src", file.Path()).Int("attempt", attempt).Msg("Copy failed")
		a := c.p.ask(c.ctx, AskCopyError, file.Path(), target.Path(), err)
		switch a {
		case AnswerContinue, AnswerOverwrite:
			if c.retry(attempt) {
				continue
			}
			c.p.fail(err)
			return Continue
		case AnswerAbortDir:
			c.p.fail(err)
			return SkipSiblings
		case AnswerAbortAll:
			c.p.fail(err)
			return Terminate
		default:
			c.p.fail(err)
			return Continue
		}
	}

	c.p.files.Add(1)
	metrics.RecordCopy(file.Size())
	file.SetMark(MarkDone)
	target.SetMark(MarkDone)

	if c.move {
		if err := file.Delete(c.ctx); err != nil {
			c.logger.Warn().Err(err).Str("path", file.Path()).Msg("Move source delete failed")
			c.p.fail(err)
		}
	}
	return Continue
}

// resolveExisting applies the exist mode to an existing destination. It
// reports false with the walk result when the file must not be copied.
func (c *copier) resolveExisting(file, target *Node) (VisitResult, bool) {
	if target.IsDirectory() {
		err := deviceError(fs.ErrExist, "copy", target.Path())
		c.p.fail(err)
		return Continue, false
	}
	switch c.cmd.Copy.Exist {
	case ExistSkip:
		return Continue, false
	case ExistNewer:
		if !file.ModTime().After(target.ModTime()) {
			return Continue, false
		}
	case ExistAsk:
		switch c.p.ask(c.ctx, AskOverwrite, file.Path(), target.Path(), nil) {
		case AnswerOverwrite, AnswerContinue:
		case AnswerAbortDir:
			return SkipSiblings, false
		case AnswerAbortAll:
			return Terminate, false
		default:
			return Continue, false
		}
	}

	if !target.IsWritable() {
		if !c.cmd.Copy.OverwriteReadOnly {
			c.p.fail(deviceError(fs.ErrPermission, "overwrite", target.Path()))
			return Continue, false
		}
		if err := target.Chmod(c.ctx, target.Mode().Perm()|0o200); err != nil {
			c.logger.Debug().Err(err).Str("path", target.Path()).Msg("Chmod before overwrite failed")
		}
	}
	return Continue, true
}

// copyFile copies the bytes of file onto target, using the raw device copy
// when both live on the same mount
func (c *copier) copyFile(file, target *Node) error {
	sm, tm := file.mount(), target.mount()
	size := file.Size()
	copied := false

	if sm == tm && sm.dev.Capabilities().RawCopy {
		err := sm.dev.Copy(c.ctx, sm.devicePath(file.Path()), tm.devicePath(target.Path()))
		switch {
		case err == nil:
			c.p.addBytes(size)
			copied = true
			if err := target.Refresh(c.ctx); err != nil {
				return err
			}
		case !stderrors.Is(err, ErrNotSupported):
			return deviceError(err, "copy", file.Path())
		}
	}
	if !copied {
		if err := c.stream(file, target); err != nil {
			return err
		}
	}

	if !c.cmd.Copy.KeepModTime && tm.dev.Capabilities().SetModTime {
		if err := target.SetModTime(c.ctx, file.ModTime()); err != nil {
			c.logger.Debug().Err(err).Str("path", target.Path()).Msg("Set mod time failed")
		}
	}
	return nil
}

func (c *copier) stream(file, target *Node) error {
	r, err := file.OpenRead(c.ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := target.OpenWrite(c.ctx)
	if err != nil {
		return err
	}
	_, err = io.CopyBuffer(&countingWriter{w: w, p: c.p}, r, c.buf)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return deviceError(err, "write", target.Path())
	}
	return nil
}

func (c *copier) LeaveDir(dir *Node, _ MarkData) VisitResult {
	if c.move && dir.Flags().Has(FlagChildrenTested) && dir.ChildCount() == 0 {
		if err := dir.Delete(c.ctx); err != nil {
			c.logger.Warn().Err(err).Str("path", dir.Path()).Msg("Move source directory delete failed")
			c.p.fail(err)
		}
	}
	return Continue
}

func (c *copier) Finish(root *Node, totals MarkData) {
	c.logger.Debug().Str("src", root.Path()).Int("files", totals.Files).Int64("bytes", totals.Bytes).Msg("Copy walk finished")
}

func (c *copier) ShouldAbort() bool {
	return c.p.Aborted()
}

// countingWriter reports written bytes to the progress
type countingWriter struct {
	w io.Writer
	p *Progress
}

func (cw *countingWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.p.addBytes(int64(n))
	return n, err
}
