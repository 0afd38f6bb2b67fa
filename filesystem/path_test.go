package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"a", "/a"},
		{"/a/b/", "/a/b"},
		{"/a//b/./c/..", "/a/b"},
		{`\a\b`, "/a/b"},
		{"  /a  ", "/a"},
		{"/../..", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestSplitPath(t *testing.T) {
	t.Parallel()

	dir, name := splitPath("/")
	assert.Equal(t, "", dir)
	assert.Equal(t, "/", name)

	dir, name = splitPath("/a")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "a", name)

	dir, name = splitPath("/a/b/c.txt")
	assert.Equal(t, "/a/b", dir)
	assert.Equal(t, "c.txt", name)
}

func TestRelPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base, p string
		rel     string
		ok      bool
	}{
		{"/", "/", "", true},
		{"/", "/a/b", "a/b", true},
		{"/a", "/a", "", true},
		{"/a", "/a/b/c", "b/c", true},
		{"/a", "/ab", "", false},
		{"/a/b", "/a", "", false},
	}
	for _, tt := range tests {
		rel, ok := relPath(tt.base, tt.p)
		assert.Equal(t, tt.ok, ok, "relPath(%q, %q)", tt.base, tt.p)
		assert.Equal(t, tt.rel, rel, "relPath(%q, %q)", tt.base, tt.p)
	}
}

func TestComponents(t *testing.T) {
	t.Parallel()

	assert.Nil(t, components(""))
	assert.Equal(t, []string{"a", "b"}, components("a//b/"))
}
