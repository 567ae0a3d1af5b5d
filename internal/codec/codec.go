// Package codec provides transport compression for data files.
//
// A codec only changes how bytes are stored; the line encoding of the
// decompressed stream is chosen independently by the format package.
package codec

import "io"

// Codec provides compression and decompression functionality.
type Codec interface {
	// Name returns the codec name used in configuration (e.g., "zstd").
	Name() string
	// Reader wraps r to decompress data read from it.
	// Closing the returned reader never closes r; the caller owns r.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the extension appended after the format's
	// extension, without dot (e.g., "zst"). Empty means no compression.
	Extension() string
}

// FileExtension joins a format extension with the codec's extension,
// e.g. "csv" + zstd = "csv.zst".
func FileExtension(formatExt string, c Codec) string {
	if ext := c.Extension(); ext != "" {
		return formatExt + "." + ext
	}
	return formatExt
}
