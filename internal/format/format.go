// Package format defines the line encodings a data file can use.
package format

// Record is one parsed line of a data file.
// Delimited-text files fill Columns; JSON-lines files fill Value.
type Record struct {
	Columns []string
	Value   any
}

// Format parses individual lines of a data file.
type Format interface {
	// Name returns the encoding name used in configuration (e.g., "csv").
	Name() string
	// Extension returns the file extension without dot (e.g., "csv").
	Extension() string
	// ParseLine parses a single line, without its trailing newline.
	// The line slice is only valid for the duration of the call.
	ParseLine(line []byte) (Record, error)
}
