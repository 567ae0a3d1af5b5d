// Package datafile wraps one chunk of upstream metadata as a lazily opened,
// single-pass sequence of records.
package datafile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pkgmeta/pkgsync/internal/codec"
	"github.com/pkgmeta/pkgsync/internal/codec/noopcodec"
	"github.com/pkgmeta/pkgsync/internal/format"
	"github.com/pkgmeta/pkgsync/internal/layout"
	"github.com/pkgmeta/pkgsync/internal/stats"
)

// ErrConsumed is returned when the records of a file are requested a second
// time. Files are forward-only; list the backend again to re-read one.
var ErrConsumed = errors.New("datafile: records already consumed")

// DefaultMaxLineSize is the longest line parsed. Longer lines are skipped
// as malformed.
const DefaultMaxLineSize = 10 * 1024 * 1024

const (
	readBufferSize = 64 * 1024
	overlongPrefix = 256
)

var errLineTooLong = errors.New("line too long")

// Opener opens the underlying byte stream of a file.
// It is called at most once per File.
type Opener func(ctx context.Context) (io.ReadCloser, error)

// File is one data file at a known coordinate.
// Its stream is not opened until records are requested.
type File struct {
	coord  layout.Coordinate
	key    string
	format format.Format
	codec  codec.Codec
	open   Opener
	logger *zap.Logger
	stats  stats.Collector

	maxLineSize int

	consumed atomic.Bool
}

// Option configures a File.
type Option func(*File)

// WithCodec sets the compression codec. Default is no compression.
func WithCodec(c codec.Codec) Option {
	return func(f *File) {
		f.codec = c
	}
}

// WithLogger sets the logger used for malformed line events.
func WithLogger(l *zap.Logger) Option {
	return func(f *File) {
		f.logger = l
	}
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return func(f *File) {
		f.stats = c
	}
}

// WithMaxLineSize sets the longest line parsed. Default is
// DefaultMaxLineSize.
func WithMaxLineSize(n int) Option {
	return func(f *File) {
		if n > 0 {
			f.maxLineSize = n
		}
	}
}

// New returns a file at coord, stored under key and decoded with fm.
// open is not called until Records is iterated.
func New(coord layout.Coordinate, key string, fm format.Format, open Opener, opts ...Option) *File {
	f := &File{
		coord:  coord,
		key:    key,
		format: fm,
		codec:  noopcodec.New(),
		open:   open,
		logger: zap.NewNop(),
		stats:  stats.NewNoop(),

		maxLineSize: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Coordinate returns the file's position in the total order.
func (f *File) Coordinate() layout.Coordinate {
	return f.coord
}

// Key returns the backend key or path the file was listed under.
func (f *File) Key() string {
	return f.key
}

// Extension returns the full file extension, e.g. "csv" or "ndjson.zst".
func (f *File) Extension() string {
	return codec.FileExtension(f.format.Extension(), f.codec)
}

// IsCheckpoint reports whether cp points at this file.
// It never opens the stream.
func (f *File) IsCheckpoint(cp layout.Checkpoint) bool {
	return cp.Matches(f.coord)
}

// String returns "<sequence>/<chunk>.<extension>".
func (f *File) String() string {
	return fmt.Sprintf("%d/%d.%s", f.coord.Sequence, f.coord.Chunk, f.Extension())
}

// Records returns the file's records in line order.
//
// The stream is opened when iteration starts and closed when it ends,
// including when the consumer stops early. Malformed lines are logged and
// skipped. A non-nil error ends the sequence: it means the file could not be
// opened or read and should be treated as failed as a whole.
//
// The sequence can be iterated once; later iterations yield ErrConsumed.
func (f *File) Records(ctx context.Context) iter.Seq2[format.Record, error] {
	return func(yield func(format.Record, error) bool) {
		if !f.consumed.CompareAndSwap(false, true) {
			yield(format.Record{}, fmt.Errorf("%w: %s", ErrConsumed, f))
			return
		}

		raw, err := f.open(ctx)
		if err != nil {
			f.stats.IncCounter(stats.MetricFileErrors, 1)
			yield(format.Record{}, fmt.Errorf("opening %s: %w", f, err))
			return
		}
		defer f.closeStream(raw, "stream")
		f.stats.IncCounter(stats.MetricFilesYielded, 1)

		r, err := f.codec.Reader(raw)
		if err != nil {
			f.stats.IncCounter(stats.MetricFileErrors, 1)
			yield(format.Record{}, fmt.Errorf("decompressing %s: %w", f, err))
			return
		}
		defer f.closeStream(r, "decompressor")

		if err := f.scan(ctx, r, yield); err != nil {
			f.stats.IncCounter(stats.MetricFileErrors, 1)
			yield(format.Record{}, fmt.Errorf("reading %s: %w", f, err))
		}
	}
}

// scan feeds parsed lines of r to yield. It returns nil when r is exhausted
// or the consumer stops.
func (f *File) scan(ctx context.Context, r io.Reader, yield func(format.Record, error) bool) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	buf := make([]byte, 0, readBufferSize)

	var lineNo int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, tooLong, err := readLine(br, buf, f.maxLineSize)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		buf = line[:0]
		lineNo++

		if tooLong {
			f.malformed(lineNo, line[:min(len(line), overlongPrefix)],
				fmt.Errorf("%w: longer than %d bytes", errLineTooLong, f.maxLineSize))
			continue
		}

		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		rec, err := f.format.ParseLine(line)
		if err != nil {
			f.malformed(lineNo, line, err)
			continue
		}

		f.stats.IncCounter(stats.MetricRecords, 1)
		if !yield(rec, nil) {
			return nil
		}
	}
}

func (f *File) malformed(lineNo int64, text []byte, err error) {
	f.stats.IncCounter(stats.MetricMalformedLines, 1)
	f.logger.Warn("skipping malformed line",
		zap.Stringer("file", f),
		zap.String("encoding", f.format.Name()),
		zap.Int64("line", lineNo),
		zap.ByteString("text", text),
		zap.Error(err),
	)
}

// readLine reads the next line into buf, without its trailing newline.
// A line longer than limit is consumed up to its newline and reported with
// tooLong set; only its first limit bytes are kept. io.EOF is returned only
// when no bytes remain.
func readLine(br *bufio.Reader, buf []byte, limit int) ([]byte, bool, error) {
	buf = buf[:0]
	var read, tooLong bool
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !tooLong {
			content := bytes.TrimSuffix(chunk, []byte{'\n'})
			if len(buf)+len(content) > limit {
				buf = append(buf, content[:limit-len(buf)]...)
				tooLong = true
			} else {
				buf = append(buf, content...)
			}
		}

		switch {
		case err == nil:
			return buf, tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !read {
				return buf, false, io.EOF
			}
			return buf, tooLong, nil
		default:
			return buf, false, err
		}
	}
}

func (f *File) closeStream(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		f.logger.Warn("closing "+what,
			zap.Stringer("file", f),
			zap.Error(err),
		)
	}
}
