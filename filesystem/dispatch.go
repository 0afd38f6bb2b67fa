package filesystem

import (
	"context"
	"time"

	"github.com/brettbedarf/filenode/internal/metrics"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
)

// handler runs one command kind on the calling goroutine
type handler func(ctx context.Context, cmd *Command, p *Progress) error

var handlers map[CommandKind]handler

func init() {
	handlers = map[CommandKind]handler{
		CmdCopyTree:             runCopy,
		CmdMoveTree:             runMove,
		CmdDeleteTree:           runDeleteTree,
		CmdCompareTrees:         runCompare,
		CmdRefresh:              runRefresh,
		CmdRefreshTree:          runRefreshTree,
		CmdChangeProps:          runChangeProps,
		CmdChangePropsRecursive: runChangePropsRecursive,
		CmdMkdir:                runMkdir,
		CmdMkdirAll:             runMkdir,
		CmdCountLength:          runCount,
		CmdDelete:               runDelete,
	}
}

// Execute runs cmd. With wait set it runs on the calling goroutine and
// returns once finished with the command error. Otherwise it is queued on the
// worker of the source node's mount and Execute returns immediately; the
// returned [Progress] and the sink report completion. A nil sink is allowed.
func (r *Registry) Execute(ctx context.Context, cmd *Command, wait bool, sink ProgressSink) (*Progress, error) {
	if cmd == nil || cmd.Src == nil {
		return nil, errors.New(errors.CodeInvalidInput, "command requires a source")
	}
	h, ok := handlers[cmd.Kind]
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown command kind %d", int(cmd.Kind))
	}
	if cmd.Kind.needsDst() && cmd.Dst == nil {
		return nil, ErrNoDestination
	}
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	p := newProgress(cmd, r.cfg, sink)

	if wait {
		r.run(ctx, cmd, h, p)
		return p, p.Err()
	}
	if r.closed.Load() {
		return nil, ErrClosed
	}

	src := cmd.Src
	src.workerBegin()
	err := src.mount().worker().submit(job{
		ctx: ctx,
		run: func(ctx context.Context) {
			defer src.workerEnd()
			r.run(ctx, cmd, h, p)
		},
		cancel: func(err error) {
			defer src.workerEnd()
			p.finish(err)
		},
	})
	if err != nil {
		src.workerEnd()
		return nil, err
	}
	r.logger.Debug().Str("id", cmd.ID.String()).Str("cmd", cmd.String()).Msg("Command queued")
	return p, nil
}

func (r *Registry) run(ctx context.Context, cmd *Command, h handler, p *Progress) {
	start := time.Now()
	r.logger.Debug().Str("id", cmd.ID.String()).Str("cmd", cmd.String()).Msg("Command started")

	err := h(ctx, cmd, p)
	if err == nil {
		err = p.Err()
	}
	if err == nil && p.Aborted() {
		err = ErrAborted
	}

	status := "ok"
	ev := r.logger.Info()
	if err != nil {
		status = "error"
		ev = r.logger.Warn().Err(err)
	}
	metrics.RecordCommand(cmd.Kind.String(), status, time.Since(start))
	p.update(true)
	p.finish(err)

	snap := p.Snapshot()
	ev.Str("id", cmd.ID.String()).
		Str("cmd", cmd.String()).
		Int64("files", snap.Files).
		Int64("bytes", snap.Bytes).
		Dur("took", time.Since(start)).
		Msg("Command finished")
}

// Dispatch queues cmd on the worker of the node's mount. A nil cmd.Src
// defaults to the node itself.
func (n *Node) Dispatch(ctx context.Context, cmd *Command, sink ProgressSink) (*Progress, error) {
	if cmd != nil && cmd.Src == nil {
		cmd.Src = n
	}
	return n.reg.Execute(ctx, cmd, false, sink)
}

// RefreshAsync queues a refresh of the node and its children list
func (n *Node) RefreshAsync(ctx context.Context, sink ProgressSink) (*Progress, error) {
	return n.Dispatch(ctx, NewCommand(CmdRefresh, n, nil), sink)
}

// MkdirAsync queues creation of the directory
func (n *Node) MkdirAsync(ctx context.Context, recursive bool, sink ProgressSink) (*Progress, error) {
	kind := CmdMkdir
	if recursive {
		kind = CmdMkdirAll
	}
	return n.Dispatch(ctx, NewCommand(kind, n, nil), sink)
}

// DeleteAsync queues deletion of the whole subtree
func (n *Node) DeleteAsync(ctx context.Context, sink ProgressSink) (*Progress, error) {
	return n.Dispatch(ctx, NewCommand(CmdDeleteTree, n, nil), sink)
}

func (n *Node) workerBegin() {
	if n.active.Add(1) == 1 {
		n.setFlags(FlagWorkerActive, 0)
	}
}

func (n *Node) workerEnd() {
	if n.active.Add(-1) == 0 {
		n.setFlags(0, FlagWorkerActive)
	}
}

func runRefresh(ctx context.Context, cmd *Command, p *Progress) error {
	p.visit(cmd.Src)
	return cmd.Src.RefreshAll(ctx)
}

func runRefreshTree(ctx context.Context, cmd *Command, p *Progress) error {
	if err := cmd.Src.Refresh(ctx); err != nil {
		return err
	}
	opts := cmd.walkOptions(p)
	_, err := Walk(ctx, cmd.Src, opts, VisitorFuncs{
		OnEnter: func(dir *Node, _ int) VisitResult {
			p.visit(dir)
			return Continue
		},
		OnFile: func(file *Node, _ int) VisitResult {
			p.visit(file)
			p.selectFile(file.Size())
			return Continue
		},
	})
	return err
}

func runMkdir(ctx context.Context, cmd *Command, p *Progress) error {
	p.visit(cmd.Src)
	return cmd.Src.Mkdir(ctx, cmd.Kind == CmdMkdirAll)
}

func runDelete(ctx context.Context, cmd *Command, p *Progress) error {
	p.visit(cmd.Src)
	size := cmd.Src.Size()
	if err := cmd.Src.Delete(ctx); err != nil {
		return err
	}
	p.selectFile(size)
	return nil
}

func runCount(ctx context.Context, cmd *Command, p *Progress) error {
	_, err := Walk(ctx, cmd.Src, cmd.walkOptions(p), VisitorFuncs{
		OnEnter: func(dir *Node, _ int) VisitResult {
			p.visit(dir)
			return Continue
		},
		OnFile: func(file *Node, _ int) VisitResult {
			p.visit(file)
			p.selectFile(file.Size())
			return Continue
		},
	})
	return err
}
