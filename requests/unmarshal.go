// Package requests converts job files into executable filesystem commands
package requests

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/filenode/filesystem"
	"github.com/jmgilman/go/errors"
	"gopkg.in/yaml.v3"
)

// userMarks is the number of application mark bits available to jobs
const userMarks = 16

// GetCommandKind extracts the command kind from JSON without full unmarshaling
func GetCommandKind(data []byte) (filesystem.CommandKind, error) {
	var meta struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return 0, errors.Wrap(err, errors.CodeInvalidInput, "malformed command")
	}
	return filesystem.ParseCommandKind(meta.Kind)
}

// UnmarshalJobFile decodes a job file, choosing the format by extension
func UnmarshalJobFile(path string, data []byte) (*JobFileDTO, error) {
	var jobs JobFileDTO
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &jobs); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "failed to unmarshal job file")
		}
	case ".json":
		if err := json.Unmarshal(data, &jobs); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "failed to unmarshal job file")
		}
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown job file extension: %s", path)
	}
	return &jobs, nil
}

// LoadJobFile reads and decodes the job file at path
func LoadJobFile(path string) (*JobFileDTO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalJobFile(path, data)
}

// Commands converts every job into a command bound to reg
func (j *JobFileDTO) Commands(reg *filesystem.Registry) ([]*filesystem.Command, error) {
	cmds := make([]*filesystem.Command, 0, len(j.Jobs))
	for i, dto := range j.Jobs {
		cmd, err := ToCommand(reg, dto)
		if err != nil {
			return nil, errors.WithContext(err, "job", i)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// ToCommand converts dto into a command bound to reg with defaults applied
func ToCommand(reg *filesystem.Registry, dto CommandDTO) (*filesystem.Command, error) {
	kind, err := filesystem.ParseCommandKind(dto.Kind)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "invalid command kind")
	}
	if dto.Src == "" {
		return nil, errors.New(errors.CodeInvalidInput, "command requires a source")
	}

	var dst *filesystem.Node
	if dto.Dst != nil {
		dst = reg.Get(*dto.Dst)
	}
	cmd := filesystem.NewCommand(kind, reg.Get(dto.Src), dst)

	if dto.Filter != nil {
		if cmd.Filter, err = filesystem.NewFilter(*dto.Filter); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "invalid filter")
		}
	}
	cmd.Depth = valueOrDefault(dto.Depth, 0)
	if cmd.SetMark, err = userMark(dto.UserMark); err != nil {
		return nil, err
	}
	if cmd.SelectMask, err = userMark(dto.SelectUserMark); err != nil {
		return nil, err
	}
	if valueOrDefault(dto.SelectOr, false) {
		cmd.Policy = filesystem.SelectOr
	}

	if dto.Exist != nil {
		if cmd.Copy.Exist, err = filesystem.ParseExistMode(*dto.Exist); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "invalid exist mode")
		}
	}
	cmd.Copy.OverwriteReadOnly = valueOrDefault(dto.OverwriteReadOnly, false)
	cmd.Copy.KeepModTime = valueOrDefault(dto.KeepModTime, false)

	if dto.Perms != nil {
		mode := fs.FileMode(*dto.Perms).Perm()
		cmd.Props.Mode = &mode
	}
	cmd.Props.ModTime = dto.ModTime
	cmd.Props.Rename = valueOrDefault(dto.Rename, "")

	if dto.Compare != nil {
		opts := filesystem.CompareOptionsFrom(reg.Config())
		opts.Tolerance = millisOrDefault(dto.Compare.ToleranceMs, opts.Tolerance)
		opts.DSTWindow = millisOrDefault(dto.Compare.DSTWindowMs, opts.DSTWindow)
		opts.Force = valueOrDefault(dto.Compare.Force, false)
		if dto.Compare.Ignore != nil {
			opts.Ignore = dto.Compare.Ignore
		}
		cmd.Compare = &opts
	}
	cmd.ProgressInterval = millisOrDefault(dto.ProgressIntervalMs, 0)

	return cmd, nil
}

func userMark(n *int) (filesystem.Mark, error) {
	if n == nil {
		return 0, nil
	}
	if *n < 0 || *n >= userMarks {
		return 0, errors.Newf(errors.CodeInvalidInput, "user mark %d out of range 0-%d", *n, userMarks-1)
	}
	return filesystem.MarkUser0 << *n, nil
}

func millisOrDefault(ms *int, def time.Duration) time.Duration {
	if ms == nil {
		return def
	}
	return time.Duration(*ms) * time.Millisecond
}

func valueOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr != nil {
		return *ptr
	}
	return defaultVal
}
