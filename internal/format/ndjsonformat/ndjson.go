// Package ndjsonformat provides the newline-delimited JSON encoding.
package ndjsonformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pkgmeta/pkgsync/internal/format"
)

// Compile-time check that Format implements format.Format.
var _ format.Format = (*Format)(nil)

var errInvalid = errors.New("line is not exactly one JSON value")

// Format parses one JSON value per line.
type Format struct{}

// New returns a new JSON-lines format.
func New() *Format {
	return &Format{}
}

// Name returns "ndjson".
func (f *Format) Name() string {
	return "ndjson"
}

// Extension returns "ndjson".
func (f *Format) Extension() string {
	return "ndjson"
}

// ParseLine decodes a single JSON value. Numbers are kept as json.Number
// so large version or id fields survive unchanged.
func (f *Format) ParseLine(line []byte) (format.Record, error) {
	if !json.Valid(line) {
		return format.Record{}, fmt.Errorf("parsing json: %w", errInvalid)
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return format.Record{}, fmt.Errorf("parsing json: %w", err)
	}

	return format.Record{Value: v}, nil
}
