package filesystem

import (
	"context"
	"slices"
	"sync/atomic"
)

// VisitResult tells the walker how to continue after a node was offered
type VisitResult int

const (
	Continue VisitResult = iota
	// SkipSubtree skips the children of the offered directory
	SkipSubtree
	// SkipSiblings skips the remaining entries of the current directory
	SkipSiblings
	// Terminate aborts the whole walk
	Terminate
)

func (r VisitResult) String() string {
	switch r {
	case Continue:
		return "continue"
	case SkipSubtree:
		return "skip-subtree"
	case SkipSiblings:
		return "skip-siblings"
	case Terminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// SelectPolicy combines the name filter and the mark mask
type SelectPolicy int

const (
	SelectAnd SelectPolicy = iota
	SelectOr
)

// WalkOptions configure [Walk]
type WalkOptions struct {
	// Depth 0 walks unlimited, >0 bounds directory expansion, <0 restricts the
	// first sub-level to nodes marked with SelectMask and bounds by -Depth
	Depth int
	// Filter selects files by hierarchical wildcard; nil selects all
	Filter *Filter
	// SelectMask selects nodes carrying any of these marks; 0 disables
	SelectMask Mark
	// SetMark is set on selected files and, as MarkSelectedChild, on their directories
	SetMark Mark
	Policy  SelectPolicy
	// ResetOnly clears SetMark instead of setting it and leaves mark data untouched
	ResetOnly bool
	// RefreshChildren lists every expanded directory from the device first
	RefreshChildren bool
	// Abort is polled between node visits
	Abort *atomic.Bool
}

// Visitor receives the nodes offered by [Walk]. Directories are offered
// before (EnterDir) and after (LeaveDir) their children; files once.
type Visitor interface {
	Start(root *Node)
	EnterDir(dir *Node, level int) VisitResult
	VisitFile(file *Node, level int) VisitResult
	LeaveDir(dir *Node, totals MarkData) VisitResult
	Finish(root *Node, totals MarkData)
	ShouldAbort() bool
}

// VisitorFuncs adapts optional functions to a [Visitor]. Nil functions continue.
type VisitorFuncs struct {
	OnStart  func(root *Node)
	OnEnter  func(dir *Node, level int) VisitResult
	OnFile   func(file *Node, level int) VisitResult
	OnLeave  func(dir *Node, totals MarkData) VisitResult
	OnFinish func(root *Node, totals MarkData)
	OnAbort  func() bool
}

func (f VisitorFuncs) Start(root *Node) {
	if f.OnStart != nil {
		f.OnStart(root)
	}
}

func (f VisitorFuncs) EnterDir(dir *Node, level int) VisitResult {
	if f.OnEnter != nil {
		return f.OnEnter(dir, level)
	}
	return Continue
}

func (f VisitorFuncs) VisitFile(file *Node, level int) VisitResult {
	if f.OnFile != nil {
		return f.OnFile(file, level)
	}
	return Continue
}

func (f VisitorFuncs) LeaveDir(dir *Node, totals MarkData) VisitResult {
	if f.OnLeave != nil {
		return f.OnLeave(dir, totals)
	}
	return Continue
}

func (f VisitorFuncs) Finish(root *Node, totals MarkData) {
	if f.OnFinish != nil {
		f.OnFinish(root, totals)
	}
}

func (f VisitorFuncs) ShouldAbort() bool {
	return f.OnAbort != nil && f.OnAbort()
}

// walkFrame is the per-level state of one expanded directory
type walkFrame struct {
	dir    *Node
	rel    []string // directory components relative to the walk root
	totals MarkData
}

type walker struct {
	ctx      context.Context
	opts     WalkOptions
	v        Visitor
	frames   []walkFrame
	maxDepth int
	err      error
}

// Walk traverses the tree below root offering nodes to v. Terminate stops the
// walk but is returned as Continue. The returned error holds the first device
// failure met while listing, or an integrity fault.
func Walk(ctx context.Context, root *Node, opts WalkOptions, v Visitor) (VisitResult, error) {
	w := &walker{
		ctx:      ctx,
		opts:     opts,
		v:        v,
		maxDepth: root.reg.cfg.MaxWalkDepth,
	}
	if opts.RefreshChildren && !root.IsTested() {
		if err := root.Refresh(ctx); err != nil {
			return Continue, err
		}
	}

	v.Start(root)
	var (
		res    VisitResult
		totals MarkData
	)
	if root.IsDirectory() || root.IsRoot() {
		w.frames = append(make([]walkFrame, 0, 16), walkFrame{dir: root})
		res = w.walkDir(0)
		totals = w.frames[0].totals
	} else if root.Flags().Has(FlagExists) || !root.IsTested() {
		if w.selectFile(0, root, nil) {
			w.markFile(root)
			totals = MarkData{Files: 1, Bytes: root.Size()}
			res = v.VisitFile(root, 0)
		}
	}
	v.Finish(root, totals)

	if res == Terminate || res == SkipSubtree || res == SkipSiblings {
		res = Continue
	}
	return res, w.err
}

func (w *walker) aborted() bool {
	if w.opts.Abort != nil && w.opts.Abort.Load() {
		return true
	}
	if w.ctx.Err() != nil {
		return true
	}
	return w.v.ShouldAbort()
}

func (w *walker) noteErr(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *walker) expand(level int) bool {
	d := w.opts.Depth
	if d < 0 {
		d = -d
	}
	return d == 0 || level < d
}

// walkDir visits the directory of frame idx and returns how the caller should
// continue with the siblings: Continue, SkipSiblings or Terminate.
func (w *walker) walkDir(idx int) VisitResult {
	dir := w.frames[idx].dir
	if idx > w.maxDepth {
		w.noteErr(ErrRecursionLimit)
		return Terminate
	}
	switch w.v.EnterDir(dir, idx) {
	case SkipSubtree:
		return Continue
	case SkipSiblings:
		return SkipSiblings
	case Terminate:
		return Terminate
	}

	if w.expand(idx) {
		if w.opts.RefreshChildren {
			if err := dir.RefreshChildren(w.ctx); err != nil {
				w.noteErr(err)
			}
		}
		dirKey := dir.reg.foldName(dir.Path())
	loop:
		for _, child := range dir.Children() {
			if w.aborted() {
				return Terminate
			}
			if dir.reg.foldName(child.dir) != dirKey {
				w.noteErr(ErrInconsistentTree)
				return Terminate
			}
			fl := child.Flags()
			if fl.Has(FlagTested) && !fl.Has(FlagExists) {
				continue
			}
			var r VisitResult
			if fl.Has(FlagDirectory) {
				rel := append(slices.Clone(w.frames[idx].rel), child.name)
				if !w.descend(idx+1, child, rel) {
					continue
				}
				w.frames = append(w.frames, walkFrame{dir: child, rel: rel})
				r = w.walkDir(idx + 1)
				sub := w.frames[idx+1].totals
				w.frames = w.frames[:idx+1]
				w.frames[idx].totals.add(sub)
			} else {
				if !w.selectFile(idx+1, child, w.frames[idx].rel) {
					continue
				}
				w.markFile(child)
				w.frames[idx].totals.add(MarkData{Files: 1, Bytes: child.Size()})
				r = w.v.VisitFile(child, idx+1)
			}
			switch r {
			case SkipSiblings:
				break loop
			case Terminate:
				return Terminate
			}
		}
	}

	totals := w.frames[idx].totals
	if !w.opts.ResetOnly {
		dir.setMarkData(totals)
	}
	w.markDir(dir, totals)
	switch w.v.LeaveDir(dir, totals) {
	case Terminate:
		return Terminate
	case SkipSiblings:
		return SkipSiblings
	}
	return Continue
}

// markApplies reports whether the mark mask takes part in selection at level
func (w *walker) markApplies(level int) bool {
	return w.opts.SelectMask != 0 && (w.opts.Depth >= 0 || level == 1)
}

func (w *walker) descend(level int, dir *Node, rel []string) bool {
	if !w.opts.Filter.Descend(rel) {
		return false
	}
	if !w.markApplies(level) {
		return true
	}
	if w.opts.Depth < 0 {
		return dir.HasMark(w.opts.SelectMask)
	}
	if w.opts.Policy == SelectOr {
		return true
	}
	return dir.HasMark(w.opts.SelectMask | MarkSelectedChild)
}

func (w *walker) selectFile(level int, file *Node, dirRel []string) bool {
	nameOK := w.opts.Filter.MatchFile(dirRel, file.name)
	if !w.markApplies(level) {
		return nameOK
	}
	markOK := file.HasMark(w.opts.SelectMask)
	if w.opts.Policy == SelectOr && w.opts.Filter != nil {
		return nameOK || markOK
	}
	return nameOK && markOK
}

func (w *walker) markFile(n *Node) {
	if w.opts.SetMark == 0 {
		return
	}
	if w.opts.ResetOnly {
		n.ClearMark(w.opts.SetMark)
	} else {
		n.SetMark(w.opts.SetMark)
	}
}

func (w *walker) markDir(dir *Node, totals MarkData) {
	if w.opts.SetMark == 0 {
		return
	}
	if w.opts.ResetOnly {
		dir.ClearMark(w.opts.SetMark | MarkSelectedChild)
	} else if totals.Files > 0 {
		dir.SetMark(MarkSelectedChild)
	}
}
