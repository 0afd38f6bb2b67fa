// Package server exposes a subtree of a node registry as a read-only FUSE mount
package server

import (
	"os"

	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/filesystem"
	"github.com/brettbedarf/filenode/internal/util"
	gofs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/rs/zerolog"
)

// Server mounts and serves one registry subtree
type Server struct {
	root   *filesystem.Node
	cfg    *config.Config
	server *fuse.Server
	logger zerolog.Logger
}

// New creates a Server for the subtree below root
func New(root *filesystem.Node) *Server {
	return &Server{
		root:   root,
		cfg:    root.Registry().Config(),
		logger: util.GetLogger("FuseServer"),
	}
}

// Serve mounts the subtree at mountPoint and returns once the mount is ready
func (s *Server) Serve(mountPoint string) error {
	opts := s.cfg.MountOptions
	ttl := opts.AttrTTL
	srv, err := gofs.Mount(mountPoint, newNode(s.root), &gofs.Options{
		MountOptions: fuse.MountOptions{
			Name:   opts.Name,
			FsName: opts.FsName,
			Debug:  opts.Debug || s.cfg.LogLvl == util.TraceLevel,
			Logger: util.NewLogLogger("FuseServer", util.DebugLevel),
		},
		EntryTimeout: &ttl,
		AttrTimeout:  &ttl,
		UID:          uint32(os.Getuid()),
		GID:          uint32(os.Getgid()),
	})
	if err != nil {
		return err
	}
	s.server = srv
	s.logger.Info().Str("mountpoint", mountPoint).Str("root", s.root.Path()).Msg("Filesystem mounted")
	return nil
}

// ServeAsync runs [Server.Serve] in the background
func (s *Server) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted
func (s *Server) Wait() {
	if s.server != nil {
		s.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.server == nil {
		return nil
	}
	return s.server.Unmount()
}
