package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/brettbedarf/filenode"
	"github.com/brettbedarf/filenode/config"
	"github.com/brettbedarf/filenode/filesystem"
	"github.com/brettbedarf/filenode/internal/metrics"
	"github.com/brettbedarf/filenode/internal/util"
	"github.com/brettbedarf/filenode/requests"
	"github.com/rs/zerolog"
)

const usage = `Usage: filenode [flags] <command> [args]

Commands:
  ls <path>                  List a directory
  count <path>               Count selected files and bytes
  copy <src> <dst>           Copy a file or tree
  move <src> <dst>           Move a file or tree
  delete <path>              Delete a file or tree
  compare <a> <b>            Compare two trees
  mkdir <path>               Create a directory and its parents
  jobs <file>                Run the commands of a JSON or YAML job file
  mount <path> <mountpoint>  Serve a subtree read-only through FUSE

Flags:
`

type options struct {
	configPath  string
	verbose     int
	filter      string
	exist       string
	depth       int
	force       bool
	keepMTime   bool
	overwriteRO bool
	metrics     string
	umount      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&opts.configPath, "c", "", "--config (shorthand)")
	flag.IntVar(&opts.verbose, "verbose", 3, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&opts.verbose, "v", 3, "--verbose (shorthand)")
	flag.StringVar(&opts.filter, "filter", "", "Hierarchical wildcard selecting files, i.e. \"src/**/*.go;*.md\"")
	flag.StringVar(&opts.filter, "f", "", "--filter (shorthand)")
	flag.StringVar(&opts.exist, "exist", "ask", "What copy and move do with existing files: ask, overwrite, skip or newer")
	flag.StringVar(&opts.exist, "e", "ask", "--exist (shorthand)")
	flag.IntVar(&opts.depth, "depth", 0, "Directory levels to expand; 0 is unlimited")
	flag.BoolVar(&opts.force, "force", false, "Compare content even when length and time agree")
	flag.BoolVar(&opts.keepMTime, "keep-mtime", false, "Do not copy modification times to the destination")
	flag.BoolVar(&opts.overwriteRO, "overwrite-read-only", false, "Replace destination files without write permission")
	flag.StringVar(&opts.metrics, "metrics", "", "Serve prometheus metrics on this address, i.e. :9090")
	flag.BoolVar(&opts.umount, "umount", false,
		"Unmount the mountpoint first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&opts.umount, "u", false, "--umount (shorthand)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	logLvl := util.LevelFromVerbosity(opts.verbose)
	util.InitializeLogger(logLvl)
	logger := util.GetLogger("main")

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		logger.Fatal().Err(err).Str("config", opts.configPath).Msg("Failed to load config")
	}
	reg, err := filenode.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to mount configured devices")
	}
	defer reg.Close()

	if opts.metrics != "" {
		go serveMetrics(opts.metrics, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{reg: reg, opts: opts, logger: logger, out: os.Stdout}
	if err := c.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error().Err(err).Str("command", flag.Arg(0)).Msg("Command failed")
		stop()
		reg.Close()
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(opts.configPath); err != nil {
			return nil, err
		}
	}
	cfg.Merge(&config.ConfigOverride{LogLvl: &opts.verbose})
	return cfg, nil
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics server stopped")
	}
}

// mount serves the subtree at src until a termination signal arrives
func (c *cli) mount(src *filesystem.Node, mnt string) error {
	if c.opts.umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}
	if abs, err := filepath.Abs(mnt); err == nil {
		mnt = abs
	}

	srv, err := filenode.Mount(src, mnt)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	c.logger.Info().Str("mountpoint", mnt).Str("root", src.Path()).Msg("Filesystem mounted successfully")

	// Wait for termination signal
	sig := <-signalChan
	c.logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")

	if err := srv.Unmount(); err != nil {
		return err
	}
	c.logger.Info().Msg("Filesystem unmounted successfully")
	return nil
}

// runJobs executes the commands of a job file in order, stopping at the first failure
func (c *cli) runJobs(ctx context.Context, path string) error {
	jobs, err := requests.LoadJobFile(path)
	if err != nil {
		return err
	}
	cmds, err := jobs.Commands(c.reg)
	if err != nil {
		return err
	}
	c.logger.Info().Int("jobs", len(cmds)).Str("file", path).Msg("Job file loaded")
	for i, cmd := range cmds {
		snap, err := c.execute(ctx, cmd)
		if err != nil {
			return fmt.Errorf("job %d (%s): %w", i, cmd, err)
		}
		fmt.Fprintf(c.out, "%s: %d files, %d bytes\n", cmd, snap.Files, snap.Bytes)
	}
	return nil
}
