package filesystem_test

import (
	"testing"

	"github.com/brettbedarf/filenode/filesystem"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveTree_RenamesOnSameDevice(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/t/a.txt", "hello", baseTime)
	src := reg.Get("/t/a.txt")

	p := execute(t, reg, filesystem.NewCommand(filesystem.CmdMoveTree, src, reg.Get("/u/moved.txt")), nil)

	assert.Equal(t, int64(1), p.Snapshot().Files)
	assert.Equal(t, int64(5), p.Snapshot().Bytes)
	assert.Equal(t, "hello", readFile(t, afs, "/u/moved.txt"))
	exists, err := afero.Exists(afs, "/t/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.False(t, src.Flags().Has(filesystem.FlagExists))
	moved := reg.Get("/u/moved.txt")
	assert.True(t, moved.HasMark(filesystem.MarkDone))
	assert.Equal(t, int64(5), moved.Size())
	assert.Equal(t, []string{"moved.txt"}, childNames(reg.Get("/u")))
}

func TestMoveTree_CopiesAndDeletesAcrossDevices(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	buildTree(t, afs)
	dst := mountMemory(t, reg, "/dst")

	p := execute(t, reg, filesystem.NewCommand(filesystem.CmdMoveTree, reg.Get("/t"), reg.Get("/dst/t2")), nil)

	assert.Equal(t, int64(5), p.Snapshot().Files)
	assert.Equal(t, "dddd", readFile(t, dst, "/t2/sub/deep/d.txt"))
	assert.Equal(t, "eeeee", readFile(t, dst, "/t2/z/e.txt"))

	exists, err := afero.Exists(afs, "/t")
	require.NoError(t, err)
	assert.False(t, exists, "emptied source directories are removed")
	assert.False(t, reg.Get("/t").Exists(t.Context()))
}

func TestMoveTree_FilteredLeavesUnselected(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	buildTree(t, afs)
	cmd := filesystem.NewCommand(filesystem.CmdMoveTree, reg.Get("/t"), reg.Get("/out"))
	cmd.Filter = filesystem.MustFilter("*.txt")

	execute(t, reg, cmd, nil)

	assert.Equal(t, "ccc", readFile(t, afs, "/out/sub/c.txt"))
	assert.Equal(t, "bb", readFile(t, afs, "/t/b.go"))
	for _, gone := range []string{"/t/a.txt", "/t/sub", "/t/z"} {
		exists, err := afero.Exists(afs, gone)
		require.NoError(t, err)
		assert.False(t, exists, gone)
	}
	assert.Equal(t, []string{"b.go"}, childNames(reg.Get("/t")))
}
