package filesystem_test

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/devices"
	"github.com/brettbedarf/filenode/filesystem"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// baseTime is an mtime far from now so tolerance checks are deterministic
var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestRegistry creates a registry whose root is an in-memory device
func newTestRegistry(t *testing.T, opts ...func(*config.Config)) (*filesystem.Registry, afero.Fs) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.AskTimeout = 500 * time.Millisecond
	cfg.ProgressInterval = time.Millisecond
	for _, o := range opts {
		o(cfg)
	}
	mem := devices.NewMemoryDevice("mem")
	reg := filesystem.NewRegistry(cfg, mem)
	t.Cleanup(reg.Close)
	return reg, mem.Fs()
}

// writeFile creates p with content and modification time mtime
func writeFile(t *testing.T, afs afero.Fs, p, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, afs.MkdirAll(path.Dir(p), 0o755))
	require.NoError(t, afero.WriteFile(afs, p, []byte(content), 0o644))
	require.NoError(t, afs.Chtimes(p, mtime, mtime))
}

func readFile(t *testing.T, afs afero.Fs, p string) string {
	t.Helper()
	b, err := afero.ReadFile(afs, p)
	require.NoError(t, err)
	return string(b)
}

func childNames(n *filesystem.Node) []string {
	var names []string
	for _, c := range n.Children() {
		names = append(names, c.Name())
	}
	return names
}

// recordingSink collects events and answers prompts with a fixed answer
type recordingSink struct {
	mu     sync.Mutex
	events []filesystem.Event
	answer filesystem.Answer
}

func (s *recordingSink) Notify(ev filesystem.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	if ev.Kind == filesystem.EventAsk && s.answer != 0 {
		ev.Prompt.Answer(s.answer)
	}
}

func (s *recordingSink) kinds(kind filesystem.EventKind) []filesystem.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []filesystem.Event
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func execute(t *testing.T, reg *filesystem.Registry, cmd *filesystem.Command, sink filesystem.ProgressSink) *filesystem.Progress {
	t.Helper()
	p, err := reg.Execute(context.Background(), cmd, true, sink)
	require.NoError(t, err)
	return p
}
