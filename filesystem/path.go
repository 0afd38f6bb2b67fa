package filesystem

import (
	"path"
	"strings"
)

// Normalize converts p to the canonical absolute slash path used as registry key.
// Backslashes are treated as separators and relative paths are resolved against "/".
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// splitPath returns the directory and name of a normalized path.
// The root "/" returns ("", "/").
func splitPath(norm string) (dir, name string) {
	if norm == "/" {
		return "", "/"
	}
	i := strings.LastIndexByte(norm, '/')
	dir = norm[:i]
	if dir == "" {
		dir = "/"
	}
	return dir, norm[i+1:]
}

// joinPath appends a relative path to a normalized directory path
func joinPath(dir, rel string) string {
	if rel == "" {
		return dir
	}
	return Normalize(dir + "/" + rel)
}

// relPath returns p relative to base, or "" when p equals base.
// ok is false when p is not inside base.
func relPath(base, p string) (rel string, ok bool) {
	if base == p {
		return "", true
	}
	if base == "/" {
		return strings.TrimPrefix(p, "/"), strings.HasPrefix(p, "/")
	}
	if !strings.HasPrefix(p, base+"/") {
		return "", false
	}
	return p[len(base)+1:], true
}

// components splits a relative slash path into its non-empty parts
func components(rel string) []string {
	if rel == "" {
		return nil
	}
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
