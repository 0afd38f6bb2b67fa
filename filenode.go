// Package filenode builds node registries from configuration.
//
// A registry maps absolute slash paths onto devices: the root is the local
// filesystem and every configured mount binds a prefix to another device
// (memory, S3, HTTP or a confined local directory).
package filenode

import (
	"sync"

	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/devices"
	"github.com/brettbedarf/filenode/filesystem"
	"github.com/brettbedarf/filenode/server"
)

var (
	defaultOnce sync.Once
	defaultReg  *filesystem.Registry
	defaultErr  error
)

// Default returns a process wide registry built from the default
// configuration on first use. Libraries should receive a registry instead.
func Default() (*filesystem.Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = New(config.NewDefaultConfig())
	})
	return defaultReg, defaultErr
}

// New creates a registry rooted on the local filesystem with every mount of
// cfg attached, using the built-in device types.
func New(cfg *config.Config) (*filesystem.Registry, error) {
	return NewWithDevices(cfg, devices.Default())
}

// NewWithDevices is [New] with a custom device type registry
func NewWithDevices(cfg *config.Config, types *devices.Registry) (*filesystem.Registry, error) {
	reg := filesystem.NewRegistry(cfg, devices.NewLocalDevice(""))
	if err := types.MountAll(reg, cfg.Mounts); err != nil {
		reg.Close()
		return nil, err
	}
	return reg, nil
}

// Mount serves the subtree below root read-only at mountPoint
func Mount(root *filesystem.Node, mountPoint string) (*server.Server, error) {
	srv := server.New(root)
	if err := srv.Serve(mountPoint); err != nil {
		return nil, err
	}
	return srv, nil
}
