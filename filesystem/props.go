package filesystem

import (
	"context"

	"github.com/jmgilman/go/errors"
)

// applyPropsChange writes the mode and modification time of a change to n
func applyPropsChange(ctx context.Context, n *Node, ch PropsChange) error {
	if ch.Mode != nil {
		if err := n.Chmod(ctx, *ch.Mode); err != nil {
			return err
		}
	}
	if ch.ModTime != nil {
		if err := n.SetModTime(ctx, *ch.ModTime); err != nil {
			return err
		}
	}
	return nil
}

func runChangeProps(ctx context.Context, cmd *Command, p *Progress) error {
	n := cmd.Src
	p.visit(n)
	if err := n.Refresh(ctx); err != nil {
		return err
	}
	if !n.Flags().Has(FlagExists) {
		return errors.WithContext(errors.New(errors.CodeNotFound, "change props of missing file"), "path", n.Path())
	}
	if err := applyPropsChange(ctx, n, cmd.Props); err != nil {
		return err
	}
	if cmd.Props.Rename != "" && cmd.Props.Rename != n.Name() {
		if _, err := n.Rename(ctx, cmd.Props.Rename); err != nil {
			return err
		}
	}
	p.selectFile(n.Size())
	return nil
}

// runChangePropsRecursive applies mode and time to every selected file and,
// after their contents, to the visited directories
func runChangePropsRecursive(ctx context.Context, cmd *Command, p *Progress) error {
	apply := func(n *Node) {
		if err := applyPropsChange(ctx, n, cmd.Props); err != nil {
			p.fail(err)
		}
	}
	_, err := Walk(ctx, cmd.Src, cmd.walkOptions(p), VisitorFuncs{
		OnEnter: func(dir *Node, _ int) VisitResult {
			p.visit(dir)
			return Continue
		},
		OnFile: func(file *Node, _ int) VisitResult {
			p.visit(file)
			apply(file)
			p.selectFile(file.Size())
			return Continue
		},
		OnLeave: func(dir *Node, _ MarkData) VisitResult {
			if !dir.isMountRoot() {
				apply(dir)
			}
			return Continue
		},
	})
	return err
}
