package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pkgmeta/pkgsync"
	"github.com/pkgmeta/pkgsync/internal/checkpoint"
	"github.com/pkgmeta/pkgsync/internal/config"
	"github.com/pkgmeta/pkgsync/internal/stats"
)

var (
	// Global flags.
	configPath     string
	checkpointPath string
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "pkgsync",
	Short: "Incrementally sync chunked package metadata files",
	Long: `Pkgsync reads package metadata published as numbered chunk files
under <version>/<source>/<sequence>/<chunk>.<ext>, from a local mirror or
an object store, and resumes from the last file it processed.

Settings are read from a YAML file and overridden by PKGSYNC_* environment
variables (PKGSYNC_BACKEND, PKGSYNC_LOCATION, PKGSYNC_SOURCE, ...).

Examples:
  # List files not yet synced
  pkgsync list --config pkgsync.yaml

  # Sync and print every record as JSON
  pkgsync sync --config pkgsync.yaml --output ndjson

  # Show the stored checkpoint
  PKGSYNC_LOCATION=./mirror PKGSYNC_SOURCE=npm pkgsync status`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&checkpointPath, "checkpoint", "", "checkpoint file (overrides checkpoint_file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// newLogger returns a development logger when verbose is set.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadConfig reads the configuration named by the global flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if checkpointPath != "" {
		cfg.CheckpointFile = checkpointPath
	}
	return cfg, nil
}

// session bundles what every subcommand needs.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	client *pkgsync.Client
	store  *checkpoint.FileStore
}

func openSession(ctx context.Context, collector stats.Collector) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	opts := []pkgsync.Option{pkgsync.WithLogger(logger)}
	if collector != nil {
		opts = append(opts, pkgsync.WithStats(collector))
	}
	client, err := pkgsync.Open(ctx, cfg, opts...)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	store, err := checkpoint.NewFileStore(cfg.CheckpointFile)
	if err != nil {
		client.Close()
		logger.Sync()
		return nil, err
	}

	return &session{cfg: cfg, logger: logger, client: client, store: store}, nil
}

// resume returns the stored checkpoint for the configured source.
func (s *session) resume(ctx context.Context) (pkgsync.Checkpoint, error) {
	return checkpoint.Resume(ctx, s.store, s.cfg.Version, s.cfg.Source)
}

func (s *session) Close() {
	s.client.Close()
	s.logger.Sync()
}

// signalContext returns a context cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, stopping after the current record...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

var errBadCheckpoint = errors.New("checkpoint must be SEQUENCE/CHUNK")

// parseCheckpoint parses "SEQUENCE/CHUNK". An empty string is the empty
// checkpoint.
func parseCheckpoint(s string) (pkgsync.Checkpoint, error) {
	if s == "" {
		return pkgsync.Checkpoint{}, nil
	}
	seq, chunk, ok := strings.Cut(s, "/")
	if !ok {
		return pkgsync.Checkpoint{}, fmt.Errorf("%w: %q", errBadCheckpoint, s)
	}
	sv, err := strconv.ParseInt(seq, 10, 64)
	if err != nil || sv < 0 {
		return pkgsync.Checkpoint{}, fmt.Errorf("%w: %q", errBadCheckpoint, s)
	}
	cv, err := strconv.ParseInt(chunk, 10, 64)
	if err != nil || cv < 0 {
		return pkgsync.Checkpoint{}, fmt.Errorf("%w: %q", errBadCheckpoint, s)
	}
	return pkgsync.At(sv, cv), nil
}
