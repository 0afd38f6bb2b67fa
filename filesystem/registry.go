package filesystem

import (
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
)

// Registry maps normalized absolute paths to their single [Node]. Lookups are
// lock-free; registration of new nodes is serialized by one mutex so that
// exactly one Node exists per path.
type Registry struct {
	cfg    *config.Config
	root   *Node
	nodes  *xsync.Map[string, *Node] // foldName(path) -> node
	mu     sync.Mutex                // serializes node registration
	logger zerolog.Logger

	mountsMu sync.RWMutex
	mounts   []*mount // sorted by descending prefix length

	closed atomic.Bool
}

// NewRegistry creates a registry whose root "/" is mounted on rootDev.
// A nil cfg uses the defaults.
func NewRegistry(cfg *config.Config, rootDev Device) *Registry {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	r := &Registry{
		cfg:    cfg,
		nodes:  xsync.NewMap[string, *Node](),
		logger: util.GetLogger("Registry"),
	}
	m := newMount(r, "/", rootDev)
	r.mounts = []*mount{m}
	r.root = newNode(r, "", "/", m)
	r.nodes.Store("/", r.root)
	return r
}

// Config returns the registry configuration
func (r *Registry) Config() *config.Config {
	return r.cfg
}

// Root returns the root node "/"
func (r *Registry) Root() *Node {
	return r.root
}

// Len returns the number of registered nodes
func (r *Registry) Len() int {
	return r.nodes.Size()
}

func (r *Registry) foldName(s string) string {
	if r.cfg.CaseInsensitive {
		return strings.ToLower(s)
	}
	return s
}

// Lookup returns the node registered for p without creating it
func (r *Registry) Lookup(p string) (*Node, bool) {
	return r.nodes.Load(r.foldName(Normalize(p)))
}

// Get returns the node for p, registering it and every missing ancestor.
// Only in-memory linking happens; the device is not accessed.
func (r *Registry) Get(p string) *Node {
	norm := Normalize(p)
	if n, ok := r.nodes.Load(r.foldName(norm)); ok {
		return n
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(norm)
}

// getLocked registers norm and its ancestors. Caller must hold r.mu.
func (r *Registry) getLocked(norm string) *Node {
	key := r.foldName(norm)
	if n, ok := r.nodes.Load(key); ok {
		return n
	}
	dir, name := splitPath(norm)
	parent := r.getLocked(dir)
	n := newNode(r, parent.Path(), name, r.mountFor(norm))
	parent.linkChild(n)
	r.nodes.Store(key, n)
	r.logger.Trace().Str("path", norm).Msg("Registered node")
	return n
}

// Child returns the node at rel below parent
func (r *Registry) Child(parent *Node, rel string) *Node {
	return r.Get(joinPath(parent.Path(), rel))
}

// Subdir returns the node at rel below parent and flags it as a directory
func (r *Registry) Subdir(parent *Node, rel string) *Node {
	n := r.Child(parent, rel)
	n.setFlags(FlagDirectory, 0)
	return n
}

// Mount attaches dev at prefix. Already registered nodes below prefix are
// rebound to the new device and their cached properties invalidated.
func (r *Registry) Mount(prefix string, dev Device) {
	norm := Normalize(prefix)
	m := newMount(r, norm, dev)

	var replaced []*mount
	r.mountsMu.Lock()
	r.mounts = slices.DeleteFunc(r.mounts, func(o *mount) bool {
		if o.prefix == norm {
			replaced = append(replaced, o)
			return true
		}
		return false
	})
	r.mounts = append(r.mounts, m)
	slices.SortFunc(r.mounts, func(a, b *mount) int {
		return len(b.prefix) - len(a.prefix)
	})
	r.mountsMu.Unlock()
	// workers may still resolve mounts while finishing their current command
	for _, o := range replaced {
		o.stop()
	}

	r.rebind(norm)
	r.Get(norm).setFlags(FlagDirectory, 0)
	r.logger.Info().Str("prefix", norm).Str("device", dev.Name()).Msg("Mounted device")
}

// Unmount detaches the device at prefix; the root mount cannot be removed
func (r *Registry) Unmount(prefix string) bool {
	norm := Normalize(prefix)
	if norm == "/" {
		return false
	}
	var removed *mount
	r.mountsMu.Lock()
	r.mounts = slices.DeleteFunc(r.mounts, func(o *mount) bool {
		if o.prefix == norm {
			removed = o
			return true
		}
		return false
	})
	r.mountsMu.Unlock()
	if removed == nil {
		return false
	}
	removed.stop()
	r.rebind(norm)
	r.logger.Info().Str("prefix", norm).Msg("Unmounted device")
	return true
}

func (r *Registry) rebind(prefix string) {
	r.nodes.Range(func(_ string, n *Node) bool {
		p := n.Path()
		if _, ok := relPath(prefix, p); ok {
			n.mnt.Store(r.mountFor(p))
			n.setFlags(0, FlagTested|FlagChildrenTested)
		}
		return true
	})
}

// mountFor returns the mount with the longest prefix containing norm
func (r *Registry) mountFor(norm string) *mount {
	r.mountsMu.RLock()
	defer r.mountsMu.RUnlock()
	for _, m := range r.mounts {
		if _, ok := relPath(m.prefix, norm); ok {
			return m
		}
	}
	return r.mounts[len(r.mounts)-1]
}

// Close stops all mount workers after their running command. Queued commands
// finish with [ErrClosed].
func (r *Registry) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.mountsMu.RLock()
	mounts := slices.Clone(r.mounts)
	r.mountsMu.RUnlock()
	for _, m := range mounts {
		m.stop()
	}
	r.logger.Debug().Msg("Registry closed")
}
