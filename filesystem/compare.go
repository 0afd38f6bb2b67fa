package filesystem

import (
	"context"
	"time"

	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/internal/metrics"
	"github.com/brettbedarf/filenode/internal/util"
	"github.com/rs/zerolog"
)

// comparer walks tree A and classifies every selected file against its
// mirror below tree B. Result marks are written to both sides.
type comparer struct {
	ctx    context.Context
	cmd    *Command
	p      *Progress
	opts   CompareOptions
	rootA  *Node
	rootB  *Node
	logger zerolog.Logger
}

func runCompare(ctx context.Context, cmd *Command, p *Progress) error {
	opts := CompareOptionsFrom(cmd.Src.reg.cfg)
	if cmd.Compare != nil {
		opts = *cmd.Compare
	}
	if err := cmd.Src.Refresh(ctx); err != nil {
		return err
	}
	// a stale B would report files as alone that exist on the device
	if err := cmd.Dst.RefreshAll(ctx); err != nil {
		return err
	}
	c := &comparer{
		ctx:    ctx,
		cmd:    cmd,
		p:      p,
		opts:   opts,
		rootA:  cmd.Src,
		rootB:  cmd.Dst,
		logger: util.GetLogger("Compare"),
	}
	_, err := Walk(ctx, c.rootA, cmd.walkOptions(p), c)
	return err
}

// timeEqual reports whether a timestamp delta is within tolerance, also
// accepting a delta of one daylight saving window when enabled
func timeEqual(dt, tolerance, dstWindow time.Duration) bool {
	if dt < 0 {
		dt = -dt
	}
	if dt <= tolerance {
		return true
	}
	if dstWindow <= 0 {
		return false
	}
	off := dt - dstWindow
	if off < 0 {
		off = -off
	}
	return off <= tolerance
}

// invertTime swaps the time greater and time lesser bits
func invertTime(m Mark) Mark {
	out := m &^ (MarkCmpTimeGreater | MarkCmpTimeLesser)
	if m&MarkCmpTimeGreater != 0 {
		out |= MarkCmpTimeLesser
	}
	if m&MarkCmpTimeLesser != 0 {
		out |= MarkCmpTimeGreater
	}
	return out
}

// mirror returns the node below rootB matching n below rootA
func (c *comparer) mirror(n *Node) *Node {
	rel, _ := relPath(c.rootA.Path(), n.Path())
	if rel == "" {
		return c.rootB
	}
	return c.rootA.reg.Child(c.rootB, rel)
}

func (c *comparer) Start(root *Node) {
	c.rootA.ClearMarkRecursive(MarkCmpAll)
	c.rootB.ClearMarkRecursive(MarkCmpAll)
	c.rootA.SetMark(MarkCmpBoundary)
	c.rootB.SetMark(MarkCmpBoundary)
	c.logger.Debug().Str("a", root.Path()).Str("b", c.rootB.Path()).Msg("Compare started")
}

// exists reports whether a mirrored node exists, refreshing untested ones
func (c *comparer) exists(n *Node) bool {
	if n.IsTested() {
		return n.Flags().Has(FlagExists)
	}
	return n.Exists(c.ctx)
}

func (c *comparer) EnterDir(dirA *Node, level int) VisitResult {
	c.p.visit(dirA)
	dirB := c.mirror(dirA)
	if !c.exists(dirB) || !dirB.IsDirectory() {
		c.markAlone(dirA)
		return SkipSubtree
	}
	if !c.expanded(level) {
		return Continue
	}
	if err := dirB.RefreshChildren(c.ctx); err != nil {
		c.p.fail(err)
		return SkipSubtree
	}
	for _, child := range dirB.Children() {
		child.SetMark(MarkCmpTentativeAlone)
	}
	return Continue
}

func (c *comparer) expanded(level int) bool {
	d := c.cmd.Depth
	if d < 0 {
		d = -d
	}
	return d == 0 || level < d
}

func (c *comparer) VisitFile(fileA *Node, _ int) VisitResult {
	c.p.visit(fileA)
	c.p.selectFile(fileA.Size())
	fileB := c.mirror(fileA)
	fileB.ClearMark(MarkCmpTentativeAlone)
	if !c.exists(fileB) || fileB.IsDirectory() {
		c.markAlone(fileA)
		return Continue
	}

	m, equal := c.classify(fileA, fileB)
	fileA.SetMark(m)
	fileB.SetMark(invertTime(m))
	if !equal {
		c.propagate(fileA, MarkCmpFileDifferences)
		c.propagate(fileB, MarkCmpFileDifferences)
		c.mismatch()
	}
	return Continue
}

// classify returns the result bits for file a and whether both are equal
func (c *comparer) classify(a, b *Node) (Mark, bool) {
	var m Mark
	dt := a.ModTime().Sub(b.ModTime())
	timeEq := timeEqual(dt, c.opts.Tolerance, c.opts.DSTWindow)
	lenEq := a.Size() == b.Size()
	if !timeEq {
		if dt > 0 {
			m |= MarkCmpTimeGreater
		} else {
			m |= MarkCmpTimeLesser
		}
	}

	switch {
	case timeEq && lenEq && !c.opts.Force:
		return m | MarkCmpLenTimeEqual | MarkCmpContentEqual, true
	case !lenEq && len(c.opts.Ignore) == 0 && !c.opts.Force:
		return m | MarkCmpContentNotEqual, false
	case timeEq && lenEq:
		m |= MarkCmpLenTimeEqual
	}

	equal, err := c.contentEqual(a, b)
	if err != nil {
		c.logger.Warn().Err(err).Str("a", a.Path()).Str("b", b.Path()).Msg("Content compare failed")
		c.p.fail(err)
		return m | MarkCmpContentNotEqual, false
	}
	if equal {
		return m | MarkCmpContentEqual, true
	}
	return m | MarkCmpContentNotEqual, false
}

func (c *comparer) contentEqual(a, b *Node) (bool, error) {
	ra, err := a.OpenRead(c.ctx)
	if err != nil {
		return false, err
	}
	defer ra.Close()
	rb, err := b.OpenRead(c.ctx)
	if err != nil {
		return false, err
	}
	defer rb.Close()
	da, db := &deviceReader{r: ra, path: a.Path()}, &deviceReader{r: rb, path: b.Path()}
	if len(c.opts.Ignore) == 0 {
		size := max(c.cmd.Src.reg.cfg.CopyBufferSize, config.KB)
		return bytesEqual(da, db, make([]byte, size), make([]byte, size))
	}
	return linesEqual(da, db, c.opts.Ignore)
}

// LeaveDir converts B children still tagged tentative into alone nodes unless
// A has a counterpart that simply was not selected
func (c *comparer) LeaveDir(dirA *Node, _ MarkData) VisitResult {
	dirB := c.mirror(dirA)
	for _, child := range dirB.Children() {
		if child.ClearMark(MarkCmpTentativeAlone)&MarkCmpTentativeAlone == 0 {
			continue
		}
		if a, ok := dirA.Child(child.Name()); ok && a.Flags().Has(FlagExists) {
			continue
		}
		if !c.selectableB(child) {
			continue
		}
		c.markAlone(child)
	}
	return Continue
}

// selectableB reports whether the filter would have selected the B node had
// it existed below A
func (c *comparer) selectableB(n *Node) bool {
	if c.cmd.Filter == nil {
		return true
	}
	rel, _ := relPath(c.rootB.Path(), n.Path())
	parts := components(rel)
	if n.IsDirectory() {
		return c.cmd.Filter.Descend(parts)
	}
	return c.cmd.Filter.MatchFile(parts[:len(parts)-1], n.Name())
}

// markAlone marks n and its whole subtree as alone and flags the ancestors
// up to the compared root as missing files
func (c *comparer) markAlone(n *Node) {
	flag := MarkCmpMissingFiles | MarkCmpFileDifferences
	if !n.IsDirectory() {
		n.SetMark(MarkCmpAlone)
		c.propagate(n, flag)
		c.mismatch()
		return
	}

	files := 0
	_, err := Walk(c.ctx, n, WalkOptions{RefreshChildren: true, Abort: &c.p.aborted}, VisitorFuncs{
		OnEnter: func(dir *Node, _ int) VisitResult {
			dir.SetMark(MarkCmpAlone)
			return Continue
		},
		OnFile: func(file *Node, _ int) VisitResult {
			file.SetMark(MarkCmpAlone)
			c.propagate(file, flag)
			c.mismatch()
			files++
			return Continue
		},
	})
	if err != nil {
		c.p.fail(err)
	}
	n.SetMark(MarkCmpAlone)
	if files == 0 {
		c.propagate(n, flag)
		c.mismatch()
	}
}

// propagate sets m on the ancestors of n up to the compared root
func (c *comparer) propagate(n *Node, m Mark) {
	if n == c.rootA || n == c.rootB {
		return
	}
	n.SetMarkParents(m)
}

func (c *comparer) mismatch() {
	c.p.addMismatch()
	metrics.RecordMismatch()
}

func (c *comparer) Finish(root *Node, _ MarkData) {
	c.logger.Debug().Str("a", root.Path()).Int64("mismatches", c.p.mismatches.Load()).Msg("Compare finished")
}

func (c *comparer) ShouldAbort() bool {
	return c.p.Aborted()
}
