package devices

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/brettbedarf/filenode/filesystem"
	"github.com/brettbedarf/filenode/internal/util"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	defaultFileMode fs.FileMode = 0o644
	defaultDirMode  fs.FileMode = 0o755
)

// AferoDevice implements [filesystem.Device] on top of an [afero.Fs]. It backs
// both the local device (OS filesystem, optionally below a base path) and the
// in-memory device.
type AferoDevice struct {
	name   string
	fs     afero.Fs
	logger zerolog.Logger
}

// NewAferoDevice wraps an arbitrary afero filesystem
func NewAferoDevice(name string, afs afero.Fs) *AferoDevice {
	return &AferoDevice{
		name:   name,
		fs:     afs,
		logger: util.GetLogger("Device").With().Str("device", name).Logger(),
	}
}

// NewLocalDevice returns a device on the OS filesystem. A non-empty base
// confines all device paths below it.
func NewLocalDevice(base string) *AferoDevice {
	var afs afero.Fs = afero.NewOsFs()
	name := LocalDeviceType
	if base != "" {
		afs = afero.NewBasePathFs(afs, base)
		name = LocalDeviceType + ":" + base
	}
	return NewAferoDevice(name, afs)
}

// NewMemoryDevice returns a device keeping all files in memory
func NewMemoryDevice(name string) *AferoDevice {
	return NewAferoDevice(name, afero.NewMemMapFs())
}

// Fs exposes the underlying afero filesystem
func (d *AferoDevice) Fs() afero.Fs {
	return d.fs
}

func (d *AferoDevice) Name() string {
	return d.name
}

func (d *AferoDevice) Capabilities() filesystem.Capabilities {
	return filesystem.Capabilities{
		Local:      true,
		Writable:   true,
		Rename:     true,
		SetModTime: true,
		Chmod:      true,
	}
}

func (d *AferoDevice) Stat(_ context.Context, p string) (filesystem.Props, error) {
	symlink := false
	if lst, ok := d.fs.(afero.Lstater); ok {
		fi, lstatCalled, err := lst.LstatIfPossible(p)
		if err != nil {
			return filesystem.Props{}, err
		}
		symlink = lstatCalled && fi.Mode()&fs.ModeSymlink != 0
	}
	fi, err := d.fs.Stat(p)
	if err != nil {
		return filesystem.Props{}, err
	}
	props := propsFromInfo(fi)
	props.Symlink = symlink
	return props, nil
}

func (d *AferoDevice) List(_ context.Context, p string) ([]filesystem.Props, error) {
	infos, err := afero.ReadDir(d.fs, p)
	if err != nil {
		return nil, err
	}
	out := make([]filesystem.Props, 0, len(infos))
	for _, fi := range infos {
		props := propsFromInfo(fi)
		if fi.Mode()&fs.ModeSymlink != 0 {
			props.Symlink = true
			// follow the link so that linked directories list as directories
			if target, err := d.fs.Stat(path.Join(p, fi.Name())); err == nil {
				props = propsFromInfo(target)
				props.Symlink = true
			}
		}
		out = append(out, props)
	}
	return out, nil
}

func (d *AferoDevice) OpenRead(_ context.Context, p string) (io.ReadCloser, error) {
	return d.fs.Open(p)
}

func (d *AferoDevice) OpenWrite(_ context.Context, p string) (io.WriteCloser, error) {
	return d.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaultFileMode)
}

func (d *AferoDevice) Delete(_ context.Context, p string) error {
	return d.fs.Remove(p)
}

func (d *AferoDevice) Mkdir(_ context.Context, p string, recursive bool) error {
	if recursive {
		return d.fs.MkdirAll(p, defaultDirMode)
	}
	return d.fs.Mkdir(p, defaultDirMode)
}

func (d *AferoDevice) Rename(_ context.Context, src, dst string) error {
	d.logger.Trace().Str("src", src).Str("dst", dst).Msg("Rename")
	return d.fs.Rename(src, dst)
}

func (d *AferoDevice) Copy(context.Context, string, string) error {
	return filesystem.ErrNotSupported
}

func (d *AferoDevice) SetModTime(_ context.Context, p string, t time.Time) error {
	return d.fs.Chtimes(p, t, t)
}

func (d *AferoDevice) Chmod(_ context.Context, p string, mode fs.FileMode) error {
	return d.fs.Chmod(p, mode)
}

func propsFromInfo(fi fs.FileInfo) filesystem.Props {
	props := filesystem.Props{
		Name:    fi.Name(),
		ModTime: fi.ModTime(),
		Mode:    fi.Mode(),
	}
	if !fi.IsDir() {
		props.Size = fi.Size()
	}
	return props
}
