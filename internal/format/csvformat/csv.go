// Package csvformat provides the delimited-text encoding.
package csvformat

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/pkgmeta/pkgsync/internal/format"
)

// Compile-time check that Format implements format.Format.
var _ format.Format = (*Format)(nil)

// errExtraRecord reports a line that holds more than one row, which happens
// when a quoted field swallows a line break.
var errExtraRecord = errors.New("line contains more than one row")

// Format parses one comma-separated row per line.
type Format struct {
	comma rune
}

// Option configures a Format.
type Option func(*Format)

// WithComma sets the field delimiter. Default is ','.
func WithComma(r rune) Option {
	return func(f *Format) {
		f.comma = r
	}
}

// New returns a new delimited-text format.
func New(opts ...Option) *Format {
	f := &Format{comma: ','}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns "csv".
func (f *Format) Name() string {
	return "csv"
}

// Extension returns "csv".
func (f *Format) Extension() string {
	return "csv"
}

// ParseLine parses a single row.
func (f *Format) ParseLine(line []byte) (format.Record, error) {
	r := csv.NewReader(bytes.NewReader(line))
	r.Comma = f.comma
	r.FieldsPerRecord = -1

	row, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return format.Record{}, fmt.Errorf("parsing row: %w", io.ErrUnexpectedEOF)
		}
		return format.Record{}, fmt.Errorf("parsing row: %w", err)
	}

	if _, err := r.Read(); err != io.EOF {
		return format.Record{}, fmt.Errorf("parsing row: %w", errExtraRecord)
	}

	return format.Record{Columns: row}, nil
}
