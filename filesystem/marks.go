package filesystem

// Mark is the application defined classification bitset of a [Node]. Bits
// 0-15 are reserved for selection and comparison, bits 16-31 are free for
// host applications (see [MarkUser0]).
type Mark uint32

const (
	// MarkSelected flags a node selected by a walk
	MarkSelected Mark = 1 << iota
	// MarkSelectedChild flags a directory whose subtree holds a selection
	MarkSelectedChild
	// MarkCmpBoundary stops upward mark propagation at a compared root
	MarkCmpBoundary
	// MarkCmpAlone flags a node without counterpart in the other tree
	MarkCmpAlone
	// MarkCmpTentativeAlone is a transient tag on the second tree, cleared when a match is found
	MarkCmpTentativeAlone
	MarkCmpContentEqual
	MarkCmpContentNotEqual
	// MarkCmpLenTimeEqual means length and timestamp matched within tolerance
	MarkCmpLenTimeEqual
	// MarkCmpTimeGreater flags the newer file of a pair
	MarkCmpTimeGreater
	// MarkCmpTimeLesser flags the older file of a pair
	MarkCmpTimeLesser
	// MarkCmpMissingFiles flags directories holding files absent in the other tree
	MarkCmpMissingFiles
	// MarkCmpFileDifferences flags directories holding any mismatching file
	MarkCmpFileDifferences
	// MarkDone flags files processed by a copy, move or delete command
	MarkDone
)

const (
	// MarkCmpAll are all bits written by a comparison
	MarkCmpAll = MarkCmpAlone | MarkCmpTentativeAlone | MarkCmpContentEqual | MarkCmpContentNotEqual |
		MarkCmpLenTimeEqual | MarkCmpTimeGreater | MarkCmpTimeLesser | MarkCmpMissingFiles |
		MarkCmpFileDifferences | MarkCmpBoundary

	// MarkReserved covers every bit used by this package
	MarkReserved Mark = 0x0000ffff

	// MarkUser0 is the first bit free for applications
	MarkUser0 Mark = 1 << 16
)

// MarkData holds the selection totals written by the walker on post-visit
type MarkData struct {
	Files int   // selected files in the subtree
	Bytes int64 // sum of selected file sizes
}

func (d *MarkData) add(o MarkData) {
	d.Files += o.Files
	d.Bytes += o.Bytes
}

// Marks returns the current mark bits
func (n *Node) Marks() Mark {
	return Mark(n.marks.Load())
}

// HasMark reports whether any bit of m is set
func (n *Node) HasMark(m Mark) bool {
	return n.Marks()&m != 0
}

// SetMark sets the bits of m and returns the previous marks
func (n *Node) SetMark(m Mark) Mark {
	return Mark(n.marks.Or(uint32(m)))
}

// ClearMark clears the bits of m and returns the previous marks.
// Clearing bits that are not set is a no-op.
func (n *Node) ClearMark(m Mark) Mark {
	return Mark(n.marks.And(^uint32(m)))
}

// SetMarkParents sets m on every ancestor of n. Propagation stops after an
// ancestor carrying MarkCmpBoundary or at the root; n itself is not marked.
func (n *Node) SetMarkParents(m Mark) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		prev := p.SetMark(m)
		if prev&MarkCmpBoundary != 0 {
			return
		}
	}
}

// ClearMarkRecursive clears m on n and all in-memory descendants. No device
// access takes place.
func (n *Node) ClearMarkRecursive(m Mark) {
	n.ClearMark(m)
	for _, child := range n.Children() {
		child.ClearMarkRecursive(m)
	}
}

// SetMarkRecursive sets m on n and all in-memory descendants
func (n *Node) SetMarkRecursive(m Mark) {
	n.SetMark(m)
	for _, child := range n.Children() {
		child.SetMarkRecursive(m)
	}
}

// MarkData returns the selection totals of the last walk over this node
func (n *Node) MarkData() MarkData {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.markData
}

func (n *Node) setMarkData(d MarkData) {
	n.mu.Lock()
	n.markData = d
	n.mu.Unlock()
}
