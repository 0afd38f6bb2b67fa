package filesystem_test

import (
	"strings"
	"testing"
	"time"

	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const equalPair = filesystem.MarkCmpLenTimeEqual | filesystem.MarkCmpContentEqual

func compareTrees(t *testing.T, reg *filesystem.Registry, a, b string, opts *filesystem.CompareOptions) *filesystem.Progress {
	t.Helper()
	cmd := filesystem.NewCommand(filesystem.CmdCompareTrees, reg.Get(a), reg.Get(b))
	cmd.Compare = opts
	return execute(t, reg, cmd, nil)
}

// cmpMarks returns the comparison bits of the node at p
func cmpMarks(reg *filesystem.Registry, p string) filesystem.Mark {
	return reg.Get(p).Marks() & (filesystem.MarkCmpAll &^ filesystem.MarkCmpBoundary)
}

func TestCompareTrees_ClassifiesBothSides(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/x/f1", "hello", baseTime)
	writeFile(t, afs, "/x/f2", "world", baseTime)
	writeFile(t, afs, "/y/f1", "hello", baseTime)
	writeFile(t, afs, "/y/f3", "abc", baseTime)

	p := compareTrees(t, reg, "/x", "/y", nil)

	assert.Equal(t, int64(2), p.Snapshot().Mismatches)
	assert.Equal(t, equalPair, cmpMarks(reg, "/x/f1"))
	assert.Equal(t, equalPair, cmpMarks(reg, "/y/f1"))
	assert.Equal(t, filesystem.MarkCmpAlone, cmpMarks(reg, "/x/f2"))
	assert.Equal(t, filesystem.MarkCmpAlone, cmpMarks(reg, "/y/f3"))

	dirBits := filesystem.MarkCmpMissingFiles | filesystem.MarkCmpFileDifferences
	assert.Equal(t, dirBits, cmpMarks(reg, "/x"))
	assert.Equal(t, dirBits, cmpMarks(reg, "/y"))
	assert.False(t, reg.Root().HasMark(dirBits), "marks stop at the compared roots")
	assert.False(t, reg.Get("/y/f1").HasMark(filesystem.MarkCmpTentativeAlone))
}

func TestCompareTrees_TimeBitsAreSymmetric(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/x/n.txt", "aaaa", baseTime.Add(time.Minute))
	writeFile(t, afs, "/y/n.txt", "bbbb", baseTime)

	compareTrees(t, reg, "/x", "/y", nil)
	xForward, yForward := cmpMarks(reg, "/x/n.txt"), cmpMarks(reg, "/y/n.txt")

	compareTrees(t, reg, "/y", "/x", nil)
	xBackward, yBackward := cmpMarks(reg, "/x/n.txt"), cmpMarks(reg, "/y/n.txt")

	assert.Equal(t, filesystem.MarkCmpTimeGreater|filesystem.MarkCmpContentNotEqual, xForward)
	assert.Equal(t, filesystem.MarkCmpTimeLesser|filesystem.MarkCmpContentNotEqual, yForward)
	assert.Equal(t, xForward, xBackward, "the newer file keeps time greater in either direction")
	assert.Equal(t, yForward, yBackward)
}

func TestCompareTrees_LengthDifference(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/x/f", "short", baseTime)
	writeFile(t, afs, "/y/f", "much longer", baseTime)

	p := compareTrees(t, reg, "/x", "/y", nil)

	assert.Equal(t, filesystem.MarkCmpContentNotEqual, cmpMarks(reg, "/x/f"))
	assert.Equal(t, filesystem.MarkCmpFileDifferences, cmpMarks(reg, "/x"))
	assert.Equal(t, int64(1), p.Snapshot().Mismatches)
}

func TestCompareTrees_IgnoreRegions(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/x/main.c", "int a;// first\n/* long\nblock */int b;\n", baseTime)
	writeFile(t, afs, "/y/main.c", "int a;\r\nint b;\r\n", baseTime.Add(time.Hour*5))

	opts := &filesystem.CompareOptions{
		Tolerance: 2 * time.Second,
		Ignore: []config.IgnoreRegion{
			{Start: "//"},
			{Start: "/*", End: "*/"},
		},
	}
	p := compareTrees(t, reg, "/x", "/y", opts)

	assert.Equal(t, filesystem.MarkCmpTimeLesser|filesystem.MarkCmpContentEqual, cmpMarks(reg, "/x/main.c"))
	assert.Zero(t, p.Snapshot().Mismatches)
}

func TestCompareTrees_DaylightSavingShift(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/x/f", "same", baseTime.Add(time.Hour))
	writeFile(t, afs, "/y/f", "same", baseTime)

	compareTrees(t, reg, "/x", "/y", nil)

	assert.Equal(t, equalPair, cmpMarks(reg, "/x/f"))
}

func TestCompareTrees_ForceReadsContent(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/x/f", "left", baseTime)
	writeFile(t, afs, "/y/f", "rght", baseTime)

	compareTrees(t, reg, "/x", "/y", nil)
	assert.Equal(t, equalPair, cmpMarks(reg, "/x/f"), "length and time agree")

	opts := filesystem.CompareOptionsFrom(reg.Config())
	opts.Force = true
	compareTrees(t, reg, "/x", "/y", &opts)
	assert.Equal(t, filesystem.MarkCmpLenTimeEqual|filesystem.MarkCmpContentNotEqual, cmpMarks(reg, "/x/f"))
}

func TestCompareTrees_AloneDirectories(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/x/only/a.txt", "a", baseTime)
	writeFile(t, afs, "/x/both/b.txt", "b", baseTime)
	writeFile(t, afs, "/y/both/b.txt", "b", baseTime)
	writeFile(t, afs, "/y/extra/deep/c.txt", "c", baseTime)

	p := compareTrees(t, reg, "/x", "/y", nil)

	assert.Equal(t, int64(2), p.Snapshot().Mismatches)
	assert.True(t, reg.Get("/x/only").HasMark(filesystem.MarkCmpAlone))
	assert.True(t, reg.Get("/x/only/a.txt").HasMark(filesystem.MarkCmpAlone))
	assert.True(t, reg.Get("/y/extra").HasMark(filesystem.MarkCmpAlone))
	assert.True(t, reg.Get("/y/extra/deep/c.txt").HasMark(filesystem.MarkCmpAlone))
	assert.Equal(t, equalPair, cmpMarks(reg, "/y/both/b.txt"))
	assert.Zero(t, cmpMarks(reg, "/y/both"))
	assert.True(t, reg.Get("/y").HasMark(filesystem.MarkCmpMissingFiles))
}

func TestCompareTrees_FilterLimitsAloneDetection(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	writeFile(t, afs, "/x/a.txt", "a", baseTime)
	writeFile(t, afs, "/y/a.txt", "a", baseTime)
	writeFile(t, afs, "/y/b.go", "b", baseTime)

	cmd := filesystem.NewCommand(filesystem.CmdCompareTrees, reg.Get("/x"), reg.Get("/y"))
	cmd.Filter = filesystem.MustFilter("*.txt")
	p := execute(t, reg, cmd, nil)

	require.Zero(t, p.Snapshot().Mismatches)
	assert.Zero(t, cmpMarks(reg, "/y/b.go"), "unselected files are never alone")
}

func TestCompareTrees_LargeBinaryContent(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	blob := strings.Repeat("\xab", 2<<20)
	writeFile(t, afs, "/x/blob.bin", blob, baseTime.Add(10*time.Minute))
	writeFile(t, afs, "/y/blob.bin", blob, baseTime)
	writeFile(t, afs, "/x/tail.bin", blob, baseTime.Add(10*time.Minute))
	writeFile(t, afs, "/y/tail.bin", blob[:len(blob)-1]+"\x00", baseTime)

	p := compareTrees(t, reg, "/x", "/y", nil)

	assert.Equal(t, filesystem.MarkCmpTimeGreater|filesystem.MarkCmpContentEqual, cmpMarks(reg, "/x/blob.bin"))
	assert.Equal(t, filesystem.MarkCmpTimeLesser|filesystem.MarkCmpContentEqual, cmpMarks(reg, "/y/blob.bin"))
	assert.Equal(t, filesystem.MarkCmpTimeGreater|filesystem.MarkCmpContentNotEqual, cmpMarks(reg, "/x/tail.bin"))
	assert.Equal(t, int64(1), p.Snapshot().Mismatches)
}

func TestCompareTrees_LongLineWithIgnoreRegions(t *testing.T) {
	t.Parallel()
	reg, afs := newTestRegistry(t)
	line := strings.Repeat("x", 2<<20)
	writeFile(t, afs, "/x/gen.txt", line+" // built monday\nend\n", baseTime)
	writeFile(t, afs, "/y/gen.txt", line+" // built friday\nend\n", baseTime.Add(time.Hour*5))

	opts := &filesystem.CompareOptions{
		Tolerance: 2 * time.Second,
		Ignore:    []config.IgnoreRegion{{Start: "//"}},
	}
	p := compareTrees(t, reg, "/x", "/y", opts)

	assert.Equal(t, filesystem.MarkCmpTimeLesser|filesystem.MarkCmpContentEqual, cmpMarks(reg, "/x/gen.txt"))
	assert.Zero(t, p.Snapshot().Mismatches)
}
