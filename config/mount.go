package config

import "time"

const (
	// DefaultAttrTTL is how long the kernel caches entries and attributes
	DefaultAttrTTL = time.Second

	// DefaultListingTTL is how long a listed directory is served from memory
	// before the device is listed again
	DefaultListingTTL = 5 * time.Second
)

// MountOptions holds the settings of the read-only FUSE view.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug      bool          // go-fuse request logging
	FsName     string        // source column of the mount table
	Name       string        // fuse subtype
	AttrTTL    time.Duration // Kernel entry and attribute cache (Default 1s)
	ListingTTL time.Duration // Directory listing reuse (Default 5s)
}
