package pkgsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pkgmeta/pkgsync/internal/config"
	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/connector/blobconnector"
	"github.com/pkgmeta/pkgsync/internal/connector/diskconnector"
	"github.com/pkgmeta/pkgsync/internal/connector/gcsconnector"
	"github.com/pkgmeta/pkgsync/internal/connector/s3connector"
	"github.com/pkgmeta/pkgsync/internal/stats"
)

// newConnector creates the connector selected by cfg.Backend.
func newConnector(ctx context.Context, cfg config.Config, logger *zap.Logger, collector stats.Collector) (connector.Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fm, err := cfg.Format()
	if err != nil {
		return nil, err
	}
	c, err := cfg.Codec()
	if err != nil {
		return nil, err
	}

	cc := connector.Config{
		Version: cfg.Version,
		Source:  cfg.Source,
		Format:  fm,
		Codec:   c,
		Logger:  logger,
		Stats:   collector,
	}

	var (
		conn connector.Connector
		cerr error
	)
	switch cfg.Backend {
	case config.BackendOffline:
		conn, cerr = diskconnector.New(cfg.Location, cc)

	case config.BackendGCS:
		conn, cerr = gcsconnector.New(ctx, cfg.Location, cc, gcsconnector.WithPrefix(cfg.Prefix))

	case config.BackendS3:
		opts := []s3connector.Option{s3connector.WithPrefix(cfg.Prefix)}
		if cfg.S3.Region != "" {
			opts = append(opts, s3connector.WithRegion(cfg.S3.Region))
		}
		if cfg.S3.Endpoint != "" {
			opts = append(opts, s3connector.WithEndpoint(cfg.S3.Endpoint))
		}
		conn, cerr = s3connector.New(ctx, cfg.Location, cc, opts...)

	case config.BackendBlob:
		conn, cerr = blobconnector.Open(ctx, cfg.Location, cc, blobconnector.WithPrefix(cfg.Prefix))

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalid, cfg.Backend)
	}
	if cerr != nil {
		return nil, fmt.Errorf("creating %s connector: %w", cfg.Backend, cerr)
	}
	return conn, nil
}
