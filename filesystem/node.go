package filesystem

import (
	"io/fs"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Node represents one normalized absolute path of a [Registry] plus its cached
// properties. Nodes are created lazily by the registry and never destroyed;
// use [Node.Refresh] to synchronize with the device.
//
// The parent is not referenced directly: it is looked up through the registry
// by the stored directory path, so the only strong references run from parent
// to children.
type Node struct {
	reg    *Registry
	dir    string // normalized parent path; "" for the root
	name   string // display name, "/" for the root
	mnt    atomic.Pointer[mount]
	marks  atomic.Uint32
	active atomic.Int32 // queued or running worker commands with this source

	mu                sync.RWMutex // protects the fields below
	props             Props
	flags             Flags
	markData          MarkData
	children          map[string]*Node // keyed by foldName(child.name)
	propsRefreshed    time.Time
	childrenRefreshed time.Time
}

func newNode(reg *Registry, dir, name string, m *mount) *Node {
	n := &Node{reg: reg, dir: dir, name: name}
	n.props.Name = name
	n.mnt.Store(m)
	if dir == "" {
		n.flags = FlagRoot | FlagDirectory | FlagExists
	}
	return n
}

// Registry returns the registry owning this node
func (n *Node) Registry() *Registry {
	return n.reg
}

// Name returns the last path component with its original case
func (n *Node) Name() string {
	return n.name
}

// Dir returns the normalized path of the parent directory, "" for the root
func (n *Node) Dir() string {
	return n.dir
}

// Path returns the normalized absolute path
func (n *Node) Path() string {
	switch n.dir {
	case "":
		return "/"
	case "/":
		return "/" + n.name
	default:
		return n.dir + "/" + n.name
	}
}

func (n *Node) String() string {
	return n.Path()
}

// IsRoot reports whether the node is the registry root
func (n *Node) IsRoot() bool {
	return n.dir == ""
}

// Parent returns the parent node or nil for the root
func (n *Node) Parent() *Node {
	if n.dir == "" {
		return nil
	}
	p, _ := n.reg.Lookup(n.dir)
	return p
}

// Flags returns a snapshot of the flag set
func (n *Node) Flags() Flags {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.flags
}

func (n *Node) setFlags(set, clear Flags) {
	n.mu.Lock()
	n.flags = n.flags&^clear | set
	n.mu.Unlock()
}

// Props returns a snapshot of the cached properties
func (n *Node) Props() Props {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.props
}

// Size returns the cached file length
func (n *Node) Size() int64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.props.Size
}

// ModTime returns the cached last modification time
func (n *Node) ModTime() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.props.ModTime
}

// CreateTime returns the cached creation time; zero when the device does not report it
func (n *Node) CreateTime() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.props.CreateTime
}

// AccessTime returns the cached last access time; zero when the device does not report it
func (n *Node) AccessTime() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.props.AccessTime
}

// Mode returns the cached file mode
func (n *Node) Mode() fs.FileMode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.props.Mode
}

// IsDirectory reports the directory flag, which may be known without a refresh
func (n *Node) IsDirectory() bool {
	return n.Flags().Has(FlagDirectory)
}

// IsTested reports whether the properties were read from the device at least once
func (n *Node) IsTested() bool {
	return n.Flags().Has(FlagTested)
}

// IsWritable reports the cached writable flag
func (n *Node) IsWritable() bool {
	return n.Flags().Has(FlagWritable)
}

// PropsRefreshed returns when the properties were last read from the device
func (n *Node) PropsRefreshed() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.propsRefreshed
}

// ChildrenRefreshed returns when the children list was last read from the device
func (n *Node) ChildrenRefreshed() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.childrenRefreshed
}

// Child returns the in-memory child called name. No device access occurs.
func (n *Node) Child(name string) (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.children[n.reg.foldName(name)]
	return c, ok
}

// Children returns the in-memory children sorted by name
func (n *Node) Children() []*Node {
	n.mu.RLock()
	children := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, c)
	}
	n.mu.RUnlock()
	slices.SortFunc(children, func(a, b *Node) int {
		return strings.Compare(a.name, b.name)
	})
	return children
}

// ChildCount returns the number of in-memory children
func (n *Node) ChildCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.children)
}

// Device returns the device the node is mounted on
func (n *Node) Device() Device {
	return n.mount().dev
}

// DevicePath returns the node path relative to its device root
func (n *Node) DevicePath() string {
	return n.mount().devicePath(n.Path())
}

// IsLocal reports whether the node's device can be called inline cheaply
func (n *Node) IsLocal() bool {
	return n.Device().Capabilities().Local
}

func (n *Node) mount() *mount {
	return n.mnt.Load()
}

// linkChild adds c to the children map and marks n as a directory
func (n *Node) linkChild(c *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	n.children[n.reg.foldName(c.name)] = c
	n.flags |= FlagDirectory
}

// unlinkChild removes c from the children map when it is still the linked node
func (n *Node) unlinkChild(c *Node) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := n.reg.foldName(c.name)
	if cur, ok := n.children[key]; ok && cur == c {
		delete(n.children, key)
		return true
	}
	return false
}

// isLinked reports whether c is the child linked under its name
func (n *Node) isLinked(c *Node) bool {
	cur, ok := n.Child(c.name)
	return ok && cur == c
}
