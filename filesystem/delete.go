package filesystem

import (
	"context"

	"github.com/brettbedarf/filenode/internal/util"
)

// runDeleteTree deletes the selected files of the subtree and every
// directory left empty, the root included
func runDeleteTree(ctx context.Context, cmd *Command, p *Progress) error {
	logger := util.GetLogger("Delete")
	if err := cmd.Src.Refresh(ctx); err != nil {
		return err
	}
	if !cmd.Src.Flags().Has(FlagExists) {
		return nil
	}

	remove := func(n *Node) {
		size := n.Size()
		if err := n.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("path", n.Path()).Msg("Delete failed")
			p.fail(err)
			return
		}
		p.selectFile(size)
	}

	_, err := Walk(ctx, cmd.Src, cmd.walkOptions(p), VisitorFuncs{
		OnEnter: func(dir *Node, _ int) VisitResult {
			p.visit(dir)
			return Continue
		},
		OnFile: func(file *Node, _ int) VisitResult {
			p.visit(file)
			remove(file)
			return Continue
		},
		OnLeave: func(dir *Node, _ MarkData) VisitResult {
			if !dir.Flags().Has(FlagChildrenTested) || dir.ChildCount() > 0 || dir.isMountRoot() {
				return Continue
			}
			if err := dir.Delete(ctx); err != nil {
				logger.Warn().Err(err).Str("path", dir.Path()).Msg("Directory delete failed")
				p.fail(err)
			}
			return Continue
		},
		OnAbort: p.Aborted,
	})
	return err
}
