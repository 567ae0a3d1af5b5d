// Package memorysyncfx provides an fx module for an in-memory pkgsync client.
// Useful for testing.
package memorysyncfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pkgmeta/pkgsync"
	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/connector/memconnector"
	"github.com/pkgmeta/pkgsync/internal/format/csvformat"
	"github.com/pkgmeta/pkgsync/internal/stats"
	"github.com/pkgmeta/pkgsync/internal/stats/logger"
)

// Config optionally overrides the source served by the connector.
type Config struct {
	// Version defaults to "v1".
	Version string
	// Source defaults to "test".
	Source string
}

// Module provides an in-memory pkgsync client for testing.
// Requires a *zap.Logger to be provided. Data is CSV encoded.
var Module = fx.Module("memorysync",
	fx.Provide(
		newStatsCollector,
		newMemConnector,
		newClient,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("pkgsync.stats"))
}

// ConnectorParams holds dependencies for creating the connector.
type ConnectorParams struct {
	fx.In

	Config    Config `optional:"true"`
	Logger    *zap.Logger
	Collector stats.Collector
}

func newMemConnector(p ConnectorParams) (*memconnector.Connector, error) {
	cfg := connector.Config{
		Version: p.Config.Version,
		Source:  p.Config.Source,
		Format:  csvformat.New(),
		Logger:  p.Logger.Named("pkgsync"),
		Stats:   p.Collector,
	}
	if cfg.Version == "" {
		cfg.Version = "v1"
	}
	if cfg.Source == "" {
		cfg.Source = "test"
	}
	return memconnector.New(cfg)
}

// Params holds dependencies for creating the client.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Connector *memconnector.Connector
	Lifecycle fx.Lifecycle
}

// Result holds the provided client and connector.
type Result struct {
	fx.Out

	Client    *pkgsync.Client
	Connector pkgsync.Connector
}

func newClient(p Params) (Result, error) {
	client, err := pkgsync.New(
		pkgsync.WithConnector(p.Connector),
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

	return Result{
		Client:    client,
		Connector: p.Connector,
	}, nil
}
