package filesystem

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// Capabilities describes which primitives a [Device] supports natively
type Capabilities struct {
	// Local devices are cheap to call inline from the caller's goroutine
	Local bool
	// Writable devices support OpenWrite, Delete and Mkdir
	Writable bool
	// Rename moves within the device without copying bytes
	Rename bool
	// RawCopy copies within the device without streaming through the host
	RawCopy bool
	// SetModTime and Chmod are honored
	SetModTime bool
	Chmod      bool
}

// Props are the properties a device reports for one path
type Props struct {
	Name       string
	Size       int64
	ModTime    time.Time
	CreateTime time.Time // zero when unknown
	AccessTime time.Time // zero when unknown
	Mode       fs.FileMode
	Symlink    bool
}

// IsDir reports whether the props describe a directory
func (p Props) IsDir() bool {
	return p.Mode.IsDir()
}

// Device is a pluggable backend performing the real I/O for nodes mounted on it.
// All paths are device relative slash paths starting with "/".
//
// Implementations return errors wrapping [fs.ErrNotExist], [fs.ErrExist] or
// [fs.ErrPermission] for expected conditions; the node layer converts them into
// coded errors.
type Device interface {
	// Name identifies the device in logs and metrics
	Name() string

	Capabilities() Capabilities

	// Stat returns the properties of p
	Stat(ctx context.Context, p string) (Props, error)

	// List returns the entries of directory p in any order
	List(ctx context.Context, p string) ([]Props, error)

	// OpenRead opens p for reading
	OpenRead(ctx context.Context, p string) (io.ReadCloser, error)

	// OpenWrite creates or truncates p for writing
	OpenWrite(ctx context.Context, p string) (io.WriteCloser, error)

	// Delete removes the file or empty directory p
	Delete(ctx context.Context, p string) error

	// Mkdir creates directory p, including missing parents when recursive is set
	Mkdir(ctx context.Context, p string, recursive bool) error

	// Rename moves src to dst within the device
	Rename(ctx context.Context, src, dst string) error

	// Copy copies file src to dst within the device. Returns [ErrNotSupported]
	// when the device has no raw copy.
	Copy(ctx context.Context, src, dst string) error

	SetModTime(ctx context.Context, p string, t time.Time) error

	Chmod(ctx context.Context, p string, mode fs.FileMode) error
}
