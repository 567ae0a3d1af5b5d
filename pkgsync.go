// Package pkgsync incrementally retrieves chunked package metadata files
// from an object store or an offline mirror and exposes their records as an
// ordered, lazily evaluated stream.
//
// Example usage:
//
//	client, err := pkgsync.Open(ctx, cfg, pkgsync.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	files, err := client.DataAfter(ctx, lastCheckpoint)
//	if err != nil {
//	    log.Fatal(err) // backend unreachable, retry later
//	}
//	for f := range files {
//	    for rec, err := range f.Records(ctx) {
//	        if err != nil {
//	            log.Fatal(err) // do not advance past f
//	        }
//	        ingest(rec)
//	    }
//	    saveCheckpoint(pkgsync.CheckpointOf(f.Coordinate()))
//	}
package pkgsync

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pkgmeta/pkgsync/internal/config"
	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/datafile"
	"github.com/pkgmeta/pkgsync/internal/format"
	"github.com/pkgmeta/pkgsync/internal/layout"
	"github.com/pkgmeta/pkgsync/internal/stats"
)

type (
	// Coordinate identifies a data file's position: sequence, then chunk.
	Coordinate = layout.Coordinate
	// Checkpoint is the last successfully processed coordinate, or empty.
	Checkpoint = layout.Checkpoint
	// DataFile is one lazily opened data file.
	DataFile = datafile.File
	// Record is one parsed line of a data file.
	Record = format.Record
	// Connector enumerates the data files of one source.
	Connector = connector.Connector
	// Config describes the source to sync and where it is stored.
	Config = config.Config
)

// At returns a checkpoint positioned at (sequence, chunk).
func At(sequence, chunk int64) Checkpoint {
	return layout.At(sequence, chunk)
}

// CheckpointOf returns a checkpoint positioned at c.
func CheckpointOf(c Coordinate) Checkpoint {
	return layout.CheckpointOf(c)
}

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("pkgsync: client closed")

	// ErrNoConnector indicates no connector was provided.
	ErrNoConnector = errors.New("pkgsync: no connector provided")

	// ErrUnavailable indicates the backend could not be listed.
	ErrUnavailable = connector.ErrUnavailable

	// ErrConsumed indicates a data file's records were already iterated.
	ErrConsumed = datafile.ErrConsumed

	// ErrNoIngest indicates Sync was called without an ingest function.
	ErrNoIngest = errors.New("pkgsync: no ingest function provided")
)

// IngestFunc receives each record of a file, in order.
// A non-nil error stops the sync without committing the file.
type IngestFunc func(ctx context.Context, f *DataFile, rec Record) error

// CommitFunc durably records that every file up to and including cp has been
// ingested. It is called once per file, after the file's last record.
type CommitFunc func(ctx context.Context, cp Checkpoint) error

// Client drives one source's connector.
// A Client assumes a single active consumer per source.
type Client struct {
	connector connector.Connector
	stats     stats.Collector
	logger    *zap.Logger
	closed    atomic.Bool
}

// New creates a new Client with the given options.
// A connector must be provided with WithConnector.
func New(opts ...Option) (*Client, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.connector == nil {
		return nil, ErrNoConnector
	}

	return &Client{
		connector: cfg.connector,
		stats:     cfg.stats,
		logger:    cfg.logger,
	}, nil
}

// Open builds the connector described by cfg and returns a client using it.
// The logger and stats options also apply to the connector.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}

	conn, err := newConnector(ctx, cfg, o.logger, o.stats)
	if err != nil {
		return nil, err
	}

	client, err := New(append(opts, WithConnector(conn))...)
	if err != nil {
		conn.Close()
		return nil, err
	}

	client.logger.Debug("client initialized",
		zap.String("backend", cfg.Backend),
		zap.String("source", cfg.Source),
		zap.String("version", cfg.Version),
		zap.String("encoding", cfg.Encoding),
	)
	return client, nil
}

// DataAfter returns the data files strictly after cp, in coordinate order.
//
// An empty cp returns every file. A cp that matches no listed file, for
// example because upstream retention removed it, also returns every file.
// No file is opened until its records are iterated.
//
// A backend that cannot be listed returns an error matching ErrUnavailable.
// An empty backend returns an empty sequence.
func (c *Client) DataAfter(ctx context.Context, cp Checkpoint) (iter.Seq[*DataFile], error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.connector.DataAfter(ctx, cp)
}

// Pending returns the number of data files after cp.
func (c *Client) Pending(ctx context.Context, cp Checkpoint) (int, error) {
	files, err := c.DataAfter(ctx, cp)
	if err != nil {
		return 0, err
	}

	var n int
	for range files {
		n++
	}
	return n, nil
}

// Sync feeds every record after cp to ingest and calls commit after each
// file. It returns the last committed checkpoint, which is cp when nothing
// was committed.
//
// Sync stops at the first file that cannot be read, the first ingest or
// commit error, or when ctx is done. The failing file is not committed, so
// the next Sync from the returned checkpoint starts again at its first
// record. ingest is required; commit may be nil.
func (c *Client) Sync(ctx context.Context, cp Checkpoint, ingest IngestFunc, commit CommitFunc) (Checkpoint, error) {
	if ingest == nil {
		return cp, ErrNoIngest
	}

	files, err := c.DataAfter(ctx, cp)
	if err != nil {
		return cp, err
	}

	last := cp
	for f := range files {
		if err := ctx.Err(); err != nil {
			return last, err
		}

		n, err := c.ingestFile(ctx, f, ingest)
		if err != nil {
			return last, err
		}

		next := CheckpointOf(f.Coordinate())
		if commit != nil {
			if err := commit(ctx, next); err != nil {
				return last, fmt.Errorf("committing %s: %w", f, err)
			}
		}
		last = next

		c.stats.SetGauge(stats.MetricCheckpointSequence, f.Coordinate().Sequence)
		c.stats.SetGauge(stats.MetricCheckpointChunk, f.Coordinate().Chunk)
		c.logger.Info("file synced",
			zap.Stringer("file", f),
			zap.Int("records", n),
		)
	}

	return last, nil
}

func (c *Client) ingestFile(ctx context.Context, f *DataFile, ingest IngestFunc) (int, error) {
	var n int
	for rec, err := range f.Records(ctx) {
		if err != nil {
			return n, err
		}
		if err := ingest(ctx, f, rec); err != nil {
			return n, fmt.Errorf("ingesting %s: %w", f, err)
		}
		n++
	}
	return n, nil
}

// Close releases all resources associated with the client.
// After Close, the client should not be used.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	if err := c.connector.Close(); err != nil {
		return fmt.Errorf("closing connector: %w", err)
	}
	return nil
}

// Connector returns the connector used by this client.
func (c *Client) Connector() connector.Connector {
	return c.connector
}
