package filesystem

// Flags are cached filesystem attributes of a [Node]. Only trust the
// attribute flags when FlagTested is set; FlagDirectory may be known earlier
// from the tree structure.
type Flags uint32

const (
	FlagExists Flags = 1 << iota
	FlagTested
	FlagDirectory
	FlagHidden
	FlagReadable
	FlagWritable
	FlagExecutable
	FlagSymlink
	FlagRoot
	// FlagRefreshPending is set on children during a children refresh and
	// cleared when the device listed them again
	FlagRefreshPending
	// FlagWorkerActive is set while a queued command has this node as source
	FlagWorkerActive
	// FlagChildrenTested is set once the children map was filled from the device
	FlagChildrenTested
)

// attrFlags are replaced as a whole by a properties refresh
const attrFlags = FlagExists | FlagHidden | FlagReadable | FlagWritable | FlagExecutable | FlagSymlink

func (f Flags) Has(bits Flags) bool {
	return f&bits == bits
}

func (f Flags) Any(bits Flags) bool {
	return f&bits != 0
}
