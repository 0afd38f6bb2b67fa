package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/brettbedarf/filenode/filesystem"
	"github.com/rs/zerolog"
)

// cli runs one command line command against a registry
type cli struct {
	reg    *filesystem.Registry
	opts   options
	logger zerolog.Logger
	out    io.Writer
	in     *bufio.Reader
}

var errUsage = errors.New("invalid arguments")

func (c *cli) run(ctx context.Context, name string, args []string) error {
	need := map[string]int{
		"ls": 1, "count": 1, "delete": 1, "mkdir": 1, "jobs": 1,
		"copy": 2, "move": 2, "compare": 2, "mount": 2,
	}
	n, ok := need[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d path arguments", errUsage, name, n)
	}
	if name == "jobs" {
		return c.runJobs(ctx, args[0])
	}

	src := c.node(args[0])
	switch name {
	case "ls":
		return c.list(ctx, src)
	case "mount":
		return c.mount(src, args[1])
	case "mkdir":
		_, err := c.execute(ctx, filesystem.NewCommand(filesystem.CmdMkdirAll, src, nil))
		return err
	case "delete":
		if err := src.Refresh(ctx); err != nil {
			return err
		}
		kind := filesystem.CmdDeleteTree
		if !src.IsDirectory() {
			kind = filesystem.CmdDelete
		}
		snap, err := c.execute(ctx, c.command(kind, src, nil))
		if err == nil {
			fmt.Fprintf(c.out, "deleted %d files, %d bytes\n", snap.Files, snap.Bytes)
		}
		return err
	case "count":
		snap, err := c.execute(ctx, c.command(filesystem.CmdCountLength, src, nil))
		if err == nil {
			fmt.Fprintf(c.out, "%d files, %d bytes\n", snap.Files, snap.Bytes)
		}
		return err
	}

	dst := c.node(args[1])
	switch name {
	case "copy", "move":
		kind := filesystem.CmdCopyTree
		if name == "move" {
			kind = filesystem.CmdMoveTree
		}
		cmd := c.command(kind, src, dst)
		exist, err := filesystem.ParseExistMode(c.opts.exist)
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		cmd.Copy = filesystem.CopyMode{
			Exist:             exist,
			OverwriteReadOnly: c.opts.overwriteRO,
			KeepModTime:       c.opts.keepMTime,
		}
		snap, err := c.execute(ctx, cmd)
		if err == nil {
			fmt.Fprintf(c.out, "%s %d files, %d bytes\n", name, snap.Files, snap.Bytes)
		}
		return err
	default: // compare
		cmd := c.command(filesystem.CmdCompareTrees, src, dst)
		opts := filesystem.CompareOptionsFrom(c.reg.Config())
		opts.Force = c.opts.force
		cmd.Compare = &opts
		snap, err := c.execute(ctx, cmd)
		if err != nil {
			return err
		}
		printCompare(c.out, src)
		printCompare(c.out, dst)
		fmt.Fprintf(c.out, "%d files compared, %d mismatches\n", snap.Files, snap.Mismatches)
		return nil
	}
}

// node resolves a command line path, relative paths being taken from the working directory
func (c *cli) node(arg string) *filesystem.Node {
	if !filepath.IsAbs(arg) {
		if abs, err := filepath.Abs(arg); err == nil {
			arg = abs
		}
	}
	return c.reg.Get(filepath.ToSlash(arg))
}

// command creates a command carrying the selection flags
func (c *cli) command(kind filesystem.CommandKind, src, dst *filesystem.Node) *filesystem.Command {
	cmd := filesystem.NewCommand(kind, src, dst)
	cmd.Depth = c.opts.depth
	if f, err := filesystem.NewFilter(c.opts.filter); err == nil {
		cmd.Filter = f
	} else {
		c.logger.Warn().Err(err).Str("filter", c.opts.filter).Msg("Ignoring invalid filter")
	}
	return cmd
}

// execute queues cmd and answers its prompts from stdin until it finishes
func (c *cli) execute(ctx context.Context, cmd *filesystem.Command) (filesystem.Snapshot, error) {
	prompts := make(chan *filesystem.Prompt)
	sink := filesystem.ProgressSinkFunc(func(ev filesystem.Event) {
		switch ev.Kind {
		case filesystem.EventAsk:
			select {
			case prompts <- ev.Prompt:
			case <-ctx.Done():
			}
		case filesystem.EventUpdate:
			c.logger.Debug().
				Str("current", ev.Snapshot.Current).
				Int64("files", ev.Snapshot.Files).
				Int64("bytes", ev.Snapshot.Bytes).
				Msg("Progress")
		}
	})

	p, err := c.reg.Execute(ctx, cmd, false, sink)
	if err != nil {
		return filesystem.Snapshot{}, err
	}
	for {
		select {
		case pr := <-prompts:
			c.ask(pr)
		case <-p.Done():
			return p.Snapshot(), p.Err()
		}
	}
}

// ask reads answers from stdin until one parses. End of input aborts all.
func (c *cli) ask(pr *filesystem.Prompt) {
	if c.in == nil {
		c.in = bufio.NewReader(os.Stdin)
	}
	for {
		fmt.Fprintf(c.out, "%s\n", pr)
		if pr.Err != nil {
			fmt.Fprintf(c.out, "  error: %v\n", pr.Err)
		}
		fmt.Fprint(c.out, "[c]ontinue [o]verwrite [s]kip abort-[f]ile abort-[d]ir [a]bort-all? ")
		line, err := c.in.ReadString('\n')
		if err != nil && line == "" {
			pr.Answer(filesystem.AnswerAbortAll)
			return
		}
		a, perr := filesystem.ParseAnswer(line)
		if perr != nil {
			fmt.Fprintln(c.out, perr)
			continue
		}
		if !pr.Answer(a) {
			fmt.Fprintln(c.out, "too late, the question timed out")
		}
		return
	}
}

func (c *cli) list(ctx context.Context, dir *filesystem.Node) error {
	if err := dir.RefreshAll(ctx); err != nil {
		return err
	}
	if !dir.Exists(ctx) {
		return fmt.Errorf("%s: %w", dir, os.ErrNotExist)
	}
	if !dir.IsDirectory() {
		printEntry(c.out, dir)
		return nil
	}
	for _, child := range dir.Children() {
		printEntry(c.out, child)
	}
	return nil
}

func printEntry(w io.Writer, n *filesystem.Node) {
	name := n.Name()
	if n.IsDirectory() {
		name += "/"
	}
	fmt.Fprintf(w, "%s %10d %s %s\n", n.Mode(), n.Size(), n.ModTime().Format("2006-01-02 15:04:05"), name)
}

// compareLabels lists the per file outcomes reported after a comparison
var compareLabels = []struct {
	mark  filesystem.Mark
	label string
}{
	{filesystem.MarkCmpAlone, "alone"},
	{filesystem.MarkCmpContentNotEqual, "differs"},
	{filesystem.MarkCmpTimeGreater, "newer"},
	{filesystem.MarkCmpTimeLesser, "older"},
}

// printCompare lists every node of the tree below root carrying a difference mark
func printCompare(w io.Writer, root *filesystem.Node) {
	for _, n := range root.Children() {
		for _, l := range compareLabels {
			if n.HasMark(l.mark) {
				fmt.Fprintf(w, "%-8s %s\n", l.label, n.Path())
				break
			}
		}
		if n.IsDirectory() && !n.HasMark(filesystem.MarkCmpAlone) {
			printCompare(w, n)
		}
	}
}
