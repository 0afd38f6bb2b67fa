package filesystem

import (
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/brettbedarf/filenode/config"
	"github.com/google/uuid"
)

// CommandKind selects the operation a [Command] performs
type CommandKind int

const (
	CmdCopyTree CommandKind = iota + 1
	CmdMoveTree
	CmdDeleteTree
	CmdCompareTrees
	CmdRefresh
	CmdRefreshTree
	CmdChangeProps
	CmdChangePropsRecursive
	CmdMkdir
	CmdMkdirAll
	CmdCountLength
	CmdDelete
)

var commandNames = map[CommandKind]string{
	CmdCopyTree:             "copy-tree",
	CmdMoveTree:             "move-tree",
	CmdDeleteTree:           "delete-tree",
	CmdCompareTrees:         "compare-trees",
	CmdRefresh:              "refresh",
	CmdRefreshTree:          "refresh-tree",
	CmdChangeProps:          "change-props",
	CmdChangePropsRecursive: "change-props-recursive",
	CmdMkdir:                "mkdir",
	CmdMkdirAll:             "mkdir-all",
	CmdCountLength:          "count-length",
	CmdDelete:               "delete",
}

func (k CommandKind) String() string {
	if s, ok := commandNames[k]; ok {
		return s
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// ParseCommandKind parses the names returned by [CommandKind.String]
func ParseCommandKind(s string) (CommandKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range commandNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown command kind %q", s)
}

// needsDst reports whether the command operates on a source/destination pair
func (k CommandKind) needsDst() bool {
	switch k {
	case CmdCopyTree, CmdMoveTree, CmdCompareTrees:
		return true
	}
	return false
}

// ExistMode decides what copying does when the destination file exists
type ExistMode int

const (
	ExistAsk ExistMode = iota
	ExistOverwrite
	ExistSkip
	// ExistNewer overwrites only when the source is newer
	ExistNewer
)

var existNames = []string{"ask", "overwrite", "skip", "newer"}

func (m ExistMode) String() string {
	if int(m) >= 0 && int(m) < len(existNames) {
		return existNames[m]
	}
	return fmt.Sprintf("exist(%d)", int(m))
}

// ParseExistMode parses the names returned by [ExistMode.String]
func ParseExistMode(s string) (ExistMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range existNames {
		if name == s {
			return ExistMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown exist mode %q", s)
}

// CopyMode configures copy and move commands
type CopyMode struct {
	Exist ExistMode
	// OverwriteReadOnly allows replacing destination files without write permission
	OverwriteReadOnly bool
	// KeepModTime skips copying the source modification time to the destination
	KeepModTime bool
}

// PropsChange lists the properties changed by the change-props commands.
// Nil fields are left untouched.
type PropsChange struct {
	Mode    *fs.FileMode
	ModTime *time.Time
	// Rename gives the node a new name in the same directory; ignored recursively
	Rename string
}

// CompareOptions tune tree comparison
type CompareOptions struct {
	Tolerance time.Duration
	// DSTWindow is an offset tolerated as daylight saving shift; 0 disables
	DSTWindow time.Duration
	// Force compares content even when length and time agree
	Force  bool
	Ignore []config.IgnoreRegion
}

// CompareOptionsFrom returns the compare options configured in cfg
func CompareOptionsFrom(cfg *config.Config) CompareOptions {
	return CompareOptions{
		Tolerance: cfg.CompareTolerance,
		DSTWindow: cfg.CompareDSTWindow,
		Ignore:    cfg.CompareIgnore,
	}
}

// Command is a self-contained operation request submitted to
// [Registry.Execute] or [Node.Dispatch]
type Command struct {
	ID   uuid.UUID
	Kind CommandKind
	Src  *Node
	// Dst is the destination root for copy, move and compare
	Dst *Node

	Filter     *Filter
	SelectMask Mark
	SetMark    Mark
	Policy     SelectPolicy
	Depth      int

	// ProgressInterval throttles update events; 0 uses the configured interval
	ProgressInterval time.Duration

	Copy  CopyMode
	Props PropsChange
	// Compare options; nil uses the configured defaults
	Compare *CompareOptions
}

// NewCommand creates a command with a fresh ID
func NewCommand(kind CommandKind, src, dst *Node) *Command {
	return &Command{
		ID:   uuid.New(),
		Kind: kind,
		Src:  src,
		Dst:  dst,
	}
}

func (c *Command) String() string {
	if c.Dst != nil {
		return fmt.Sprintf("%s %s -> %s", c.Kind, c.Src, c.Dst)
	}
	return fmt.Sprintf("%s %s", c.Kind, c.Src)
}

// walkOptions derives walker options from the command selection fields
func (c *Command) walkOptions(p *Progress) WalkOptions {
	return WalkOptions{
		Depth:           c.Depth,
		Filter:          c.Filter,
		SelectMask:      c.SelectMask,
		SetMark:         c.SetMark,
		Policy:          c.Policy,
		RefreshChildren: true,
		Abort:           &p.aborted,
	}
}
