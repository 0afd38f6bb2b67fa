package requests

import (
	"time"

	"github.com/brettbedarf/filenode/config"
)

// JobFileDTO is the JSON/YAML representation of a job file: a list of
// commands executed in order
type JobFileDTO struct {
	Jobs []CommandDTO `json:"jobs" yaml:"jobs"`
}

// CommandDTO is the JSON/YAML representation of [filesystem.Command]
type CommandDTO struct {
	Kind string  `json:"kind" yaml:"kind"` // see [filesystem.ParseCommandKind]
	Src  string  `json:"src" yaml:"src"`
	Dst  *string `json:"dst,omitempty" yaml:"dst,omitempty"` // Required by copy-tree, move-tree and compare-trees

	Filter *string `json:"filter,omitempty" yaml:"filter,omitempty"` // Hierarchical wildcard, i.e. "src/**/*.go"
	Depth  *int    `json:"depth,omitempty" yaml:"depth,omitempty"`   // 0 (default) walks unlimited
	// UserMark sets application mark n (0-15) on every selected file
	UserMark *int `json:"user_mark,omitempty" yaml:"user_mark,omitempty"`
	// SelectUserMark restricts selection to files carrying application mark n
	SelectUserMark *int  `json:"select_user_mark,omitempty" yaml:"select_user_mark,omitempty"`
	SelectOr       *bool `json:"select_or,omitempty" yaml:"select_or,omitempty"` // Filter OR mark instead of AND

	Exist             *string `json:"exist,omitempty" yaml:"exist,omitempty"` // ask (default), overwrite, skip, newer
	OverwriteReadOnly *bool   `json:"overwrite_read_only,omitempty" yaml:"overwrite_read_only,omitempty"`
	KeepModTime       *bool   `json:"keep_mod_time,omitempty" yaml:"keep_mod_time,omitempty"`

	Perms   *uint32    `json:"perms,omitempty" yaml:"perms,omitempty"` // i.e. 0644
	ModTime *time.Time `json:"mod_time,omitempty" yaml:"mod_time,omitempty"`
	Rename  *string    `json:"rename,omitempty" yaml:"rename,omitempty"`

	Compare *CompareDTO `json:"compare,omitempty" yaml:"compare,omitempty"`

	ProgressIntervalMs *int `json:"progress_interval_ms,omitempty" yaml:"progress_interval_ms,omitempty"`
}

// CompareDTO overrides the configured comparison options for one command
type CompareDTO struct {
	ToleranceMs *int                  `json:"tolerance_ms,omitempty" yaml:"tolerance_ms,omitempty"`
	DSTWindowMs *int                  `json:"dst_window_ms,omitempty" yaml:"dst_window_ms,omitempty"`
	Force       *bool                 `json:"force,omitempty" yaml:"force,omitempty"`
	Ignore      []config.IgnoreRegion `json:"ignore,omitempty" yaml:"ignore,omitempty"`
}
