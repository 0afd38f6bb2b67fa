package filesystem

import (
	"path"
	"strings"
)

// Filter is a hierarchical wildcard selection such as "*.txt", "src/*/*.go" or
// "**/test/*.c". The last component matches file names, the preceding ones
// match directories level by level where "**" matches any number of levels.
// A pattern without "/" matches files at every level.
//
// Several patterns can be combined with ";" and match when any of them does.
type Filter struct {
	patterns []filterPattern
}

type filterPattern struct {
	dirs []string // directory components; nil with anyDepth means every level
	file string
}

// NewFilter compiles pattern. An empty pattern returns nil, which selects everything.
func NewFilter(pattern string) (*Filter, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}
	f := &Filter{}
	for _, raw := range strings.Split(pattern, ";") {
		raw = strings.Trim(strings.TrimSpace(raw), "/")
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, "/")
		fp := filterPattern{file: parts[len(parts)-1]}
		if len(parts) == 1 {
			fp.dirs = []string{"**"}
		} else {
			fp.dirs = parts[:len(parts)-1]
		}
		for _, part := range parts {
			if _, err := path.Match(part, ""); err != nil {
				return nil, err
			}
		}
		f.patterns = append(f.patterns, fp)
	}
	if len(f.patterns) == 0 {
		return nil, nil
	}
	return f, nil
}

// MustFilter is like [NewFilter] but panics on malformed patterns
func MustFilter(pattern string) *Filter {
	f, err := NewFilter(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// MatchFile reports whether a file called name in the directory reached by
// dirs (relative to the walk root) is selected
func (f *Filter) MatchFile(dirs []string, name string) bool {
	if f == nil {
		return true
	}
	for _, p := range f.patterns {
		if matchName(p.file, name) && matchDirs(p.dirs, dirs) {
			return true
		}
	}
	return false
}

// Descend reports whether files below the directory reached by dirs can
// still be selected
func (f *Filter) Descend(dirs []string) bool {
	if f == nil {
		return true
	}
	for _, p := range f.patterns {
		if prefixDirs(p.dirs, dirs) {
			return true
		}
	}
	return false
}

func matchName(pattern, name string) bool {
	ok, _ := path.Match(pattern, name)
	return ok
}

// matchDirs matches the full directory list against the patterns
func matchDirs(pats, dirs []string) bool {
	if len(pats) == 0 {
		return len(dirs) == 0
	}
	if pats[0] == "**" {
		for i := 0; i <= len(dirs); i++ {
			if matchDirs(pats[1:], dirs[i:]) {
				return true
			}
		}
		return false
	}
	if len(dirs) == 0 || !matchName(pats[0], dirs[0]) {
		return false
	}
	return matchDirs(pats[1:], dirs[1:])
}

// prefixDirs reports whether dirs can be extended into a full match of pats
func prefixDirs(pats, dirs []string) bool {
	if len(dirs) == 0 {
		return true
	}
	if len(pats) == 0 {
		return false
	}
	if pats[0] == "**" {
		return true
	}
	if !matchName(pats[0], dirs[0]) {
		return false
	}
	return prefixDirs(pats[1:], dirs[1:])
}
