// Package connector defines the storage connector interface and the plumbing
// shared by every backend: key parsing, numeric ordering and the checkpoint
// scan that decides where a sync attempt resumes.
package connector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pkgmeta/pkgsync/internal/codec"
	"github.com/pkgmeta/pkgsync/internal/codec/noopcodec"
	"github.com/pkgmeta/pkgsync/internal/datafile"
	"github.com/pkgmeta/pkgsync/internal/format"
	"github.com/pkgmeta/pkgsync/internal/layout"
	"github.com/pkgmeta/pkgsync/internal/stats"
)

// ErrUnavailable is returned when a backend cannot be listed.
// The underlying cause is wrapped alongside it.
var ErrUnavailable = errors.New("connector: backend unavailable")

// Connector enumerates the data files of one source.
type Connector interface {
	// DataAfter lists the backend and returns the files strictly after cp,
	// in coordinate order. An empty cp, or one that names no listed file,
	// returns every file. The returned files are not opened.
	//
	// Listing happens before DataAfter returns; a listing failure is
	// reported as an error wrapping ErrUnavailable.
	DataAfter(ctx context.Context, cp layout.Checkpoint) (iter.Seq[*datafile.File], error)

	// Close releases any resources held by the connector.
	Close() error
}

// Unavailable wraps err so that it matches ErrUnavailable.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Config is the part of a sync configuration every backend consults.
type Config struct {
	// Version is the file-naming version token, e.g. "v1".
	Version string
	// Source identifies the upstream source, e.g. "npm".
	Source string
	// Format decodes lines of each data file.
	Format format.Format
	// Codec decompresses data files. Nil means uncompressed.
	Codec codec.Codec
	// Logger receives listing and decoding events. Nil means no logging.
	Logger *zap.Logger
	// Stats receives metrics. Nil means no metrics.
	Stats stats.Collector
}

// Entry is one listed key whose name follows the layout.
type Entry struct {
	Coord layout.Coordinate
	Key   string
}

// Base holds the settings shared by backends. Backends embed it.
type Base struct {
	layout layout.Layout
	format format.Format
	codec  codec.Codec
	logger *zap.Logger
	stats  stats.Collector
}

// NewBase validates cfg and fills in defaults.
// name is appended to the logger name, e.g. "disk".
func NewBase(name string, cfg Config) (Base, error) {
	if cfg.Version == "" {
		return Base{}, errors.New("connector: version is required")
	}
	if cfg.Source == "" {
		return Base{}, errors.New("connector: source is required")
	}
	if cfg.Format == nil {
		return Base{}, errors.New("connector: format is required")
	}

	b := Base{
		format: cfg.Format,
		codec:  cfg.Codec,
		logger: cfg.Logger,
		stats:  cfg.Stats,
	}
	if b.codec == nil {
		b.codec = noopcodec.New()
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.stats == nil {
		b.stats = stats.NewNoop()
	}
	b.logger = b.logger.Named("connector").With(
		zap.String("backend", name),
		zap.String("source", cfg.Source),
	)
	b.layout = layout.Layout{
		Version:   cfg.Version,
		Source:    cfg.Source,
		Extension: codec.FileExtension(cfg.Format.Extension(), b.codec),
	}
	return b, nil
}

// Layout returns the key layout of the source.
func (b *Base) Layout() layout.Layout {
	return b.layout
}

// Logger returns the connector's logger.
func (b *Base) Logger() *zap.Logger {
	return b.logger
}

// Stats returns the connector's stats collector.
func (b *Base) Stats() stats.Collector {
	return b.stats
}

// Collect parses listed keys relative to the backend root, dropping those
// that do not follow the layout, and returns the entries sorted.
func (b *Base) Collect(keys iter.Seq[string]) []Entry {
	var (
		entries []Entry
		skipped int64
	)
	for key := range keys {
		coord, ok := b.layout.Parse(key)
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, Entry{Coord: coord, Key: key})
	}

	entries = Sort(entries)
	b.stats.IncCounter(stats.MetricFilesListed, int64(len(entries)))
	if skipped > 0 {
		b.stats.IncCounter(stats.MetricFilesSkipped, skipped)
	}
	return entries
}

// ObserveList records how long a listing took.
func (b *Base) ObserveList(start time.Time) {
	b.stats.ObserveHistogram(stats.MetricListDuration, time.Since(start).Seconds())
}

// Files resolves cp against the sorted entries and returns the remaining
// files as a lazy sequence. open returns the stream opener for a key and is
// called only when a file is yielded.
func (b *Base) Files(entries []Entry, cp layout.Checkpoint, open func(key string) datafile.Opener) iter.Seq[*datafile.File] {
	rest, replayed := After(entries, cp)
	if replayed {
		b.stats.IncCounter(stats.MetricFullReplays, 1)
		b.logger.Warn("checkpoint not found, replaying from start",
			zap.Stringer("checkpoint", cp),
			zap.Int("files", len(rest)),
		)
	}
	b.stats.SetGauge(stats.MetricPendingFiles, int64(len(rest)))
	b.logger.Debug("resolved checkpoint",
		zap.Stringer("checkpoint", cp),
		zap.Int("listed", len(entries)),
		zap.Int("pending", len(rest)),
	)

	fileLogger := b.logger.Named("datafile")
	return func(yield func(*datafile.File) bool) {
		for _, e := range rest {
			f := datafile.New(e.Coord, e.Key, b.format, open(e.Key),
				datafile.WithCodec(b.codec),
				datafile.WithLogger(fileLogger),
				datafile.WithStats(b.stats),
			)
			if !yield(f) {
				return
			}
		}
	}
}

// Sort orders entries by coordinate and removes entries that repeat a
// coordinate, keeping the lexically smallest key. The input is modified.
func Sort(entries []Entry) []Entry {
	slices.SortFunc(entries, func(a, b Entry) int {
		if n := a.Coord.Compare(b.Coord); n != 0 {
			return n
		}
		return strings.Compare(a.Key, b.Key)
	})
	return slices.CompactFunc(entries, func(a, b Entry) bool {
		return a.Coord == b.Coord
	})
}

// After returns the entries strictly after cp. An empty cp returns all
// entries. A cp that matches no entry also returns all entries and reports
// replayed as true. entries must be sorted.
func After(entries []Entry, cp layout.Checkpoint) (rest []Entry, replayed bool) {
	if cp.IsEmpty() {
		return entries, false
	}
	for i, e := range entries {
		if cp.Matches(e.Coord) {
			return entries[i+1:], false
		}
	}
	return entries, true
}
