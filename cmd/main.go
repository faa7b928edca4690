package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/brettbedarf/vfs"
	"github.com/brettbedarf/vfs/cache"
	"github.com/brettbedarf/vfs/config"
	"github.com/brettbedarf/vfs/hierarchy"
	"github.com/brettbedarf/vfs/internal/util"
	"github.com/brettbedarf/vfs/manifest"
	"github.com/brettbedarf/vfs/snapshotters"
)

func main() {
	// Parse command line arguments
	var (
		configPath   string
		manifestPath string
		verbose      int
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&manifestPath, "manifest", "", "Path to a YAML or JSON manifest of paths and their sources")
	flag.StringVar(&manifestPath, "m", "", "--manifest (shorthand)")
	flag.IntVar(&verbose, "verbose", 0, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", 0, "--verbose (shorthand)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [path...]\n\nSnapshots each path and prints the cached tree.\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(configPath, verbose)
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")
	if err != nil {
		logger.Fatal().Err(err).Str("config", configPath).Msg("Failed to load config")
	}

	registry := snapshotters.NewRegistry()
	snapshotters.RegisterBuiltins(registry, cfg)
	local, err := registry.NewSnapshotter([]byte(`{"type":"local"}`))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create local snapshotter")
	}

	c := cache.New(cfg, local)

	var paths []string
	if manifestPath != "" {
		m, err := manifest.LoadFile(manifestPath, registry)
		if err != nil {
			logger.Fatal().Err(err).Str("manifest", manifestPath).Msg("Failed to load manifest")
		}
		paths = append(paths, c.Load(m)...)
		logger.Debug().Str("manifest", manifestPath).Int("entries", len(m.Entries)).Msg("Manifest loaded")
	}
	for _, arg := range flag.Args() {
		abs, err := filepath.Abs(arg)
		if err != nil {
			logger.Fatal().Err(err).Str("path", arg).Msg("Failed to resolve path")
		}
		paths = append(paths, abs)
	}
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Int("paths", len(paths)).Int("concurrency", cfg.Concurrency).Msg("Snapshotting")
	if err := c.Refresh(ctx, paths...); err != nil {
		logger.Fatal().Err(err).Msg("Failed to snapshot paths")
	}

	if err := printTree(os.Stdout, c.Hierarchy(), cfg); err != nil {
		logger.Fatal().Err(err).Msg("Failed to print tree")
	}
}

// loadConfig merges the optional config file with a verbosity flag; the
// flag wins when set
func loadConfig(path string, verbose int) (*config.Config, error) {
	override := &config.ConfigOverride{}
	if path != "" {
		fileOverride, err := config.LoadConfigOverrideFile(path)
		if err != nil {
			return config.NewDefaultConfig(), err
		}
		override = fileOverride
	}
	if verbose != 0 {
		override.LogLvl = &verbose
	}
	cfg := config.NewConfig(override)
	if err := cfg.Validate(); err != nil {
		return config.NewDefaultConfig(), err
	}
	return cfg, nil
}

// printTree writes one line per cached node, indented by depth
func printTree(w io.Writer, h *hierarchy.SnapshotHierarchy, cfg *config.Config) error {
	sep := cfg.Style().Separator()
	printer := vfs.VisitorFunc(func(path string, s *vfs.Snapshot) bool {
		depth := strings.Count(path, sep)
		if path == hierarchy.RootPath {
			depth = 0
		}
		indent := strings.Repeat("  ", depth)
		if s == nil {
			fmt.Fprintf(w, "%s%s\n", indent, path)
			return true
		}
		fmt.Fprintf(w, "%s%s [%s size=%d fp=%016x]\n", indent, path, s.Type, s.Size(), s.Fingerprint)
		return true
	})

	if sep == "/" {
		return h.Visit(hierarchy.RootPath, printer)
	}
	// windows paths start at a drive, not at "/"
	for _, drive := range h.Root().Entries() {
		if err := drive.Accept(printer); err != nil {
			return err
		}
	}
	return nil
}
