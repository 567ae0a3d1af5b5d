// Package offlinesyncfx provides an fx module for a pkgsync client reading an
// offline mirror.
package offlinesyncfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pkgmeta/pkgsync"
	"github.com/pkgmeta/pkgsync/internal/config"
	"github.com/pkgmeta/pkgsync/internal/stats"
	"github.com/pkgmeta/pkgsync/internal/stats/logger"
)

// Config holds configuration for the offline client.
type Config struct {
	// DataDir is the mirror root containing <version>/<source>/.
	DataDir string

	// Source identifies the upstream source, e.g. "npm".
	Source string

	// Version is the file-naming version token. Default is "v1".
	Version string

	// Encoding is "csv" or "ndjson". Default is "csv".
	Encoding string

	// Compression is "none", "gzip" or "zstd". Default is "none".
	Compression string
}

// Module provides an offline pkgsync client.
// Requires a *zap.Logger and a Config to be provided.
var Module = fx.Module("offlinesync",
	fx.Provide(
		newStatsCollector,
		newClient,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("pkgsync.stats"))
}

// Params holds dependencies for creating the client.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided client.
type Result struct {
	fx.Out

	Client *pkgsync.Client
}

func newClient(p Params) (Result, error) {
	cfg := config.Default()
	cfg.Backend = config.BackendOffline
	cfg.Location = p.Config.DataDir
	cfg.Source = p.Config.Source
	if p.Config.Version != "" {
		cfg.Version = p.Config.Version
	}
	if p.Config.Encoding != "" {
		cfg.Encoding = p.Config.Encoding
	}
	if p.Config.Compression != "" {
		cfg.Compression = p.Config.Compression
	}

	client, err := pkgsync.Open(context.Background(), cfg,
		pkgsync.WithStats(p.Collector),
		pkgsync.WithLogger(p.Logger.Named("pkgsync")),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return Result{Client: client}, nil
}
