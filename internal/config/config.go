// Package config loads the sync configuration: a YAML file, overridden by
// PKGSYNC_* environment variables, then validated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/pkgmeta/pkgsync/internal/codec"
	"github.com/pkgmeta/pkgsync/internal/codec/gzipcodec"
	"github.com/pkgmeta/pkgsync/internal/codec/noopcodec"
	"github.com/pkgmeta/pkgsync/internal/codec/zstdcodec"
	"github.com/pkgmeta/pkgsync/internal/format"
	"github.com/pkgmeta/pkgsync/internal/format/csvformat"
	"github.com/pkgmeta/pkgsync/internal/format/ndjsonformat"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Backends.
const (
	BackendOffline = "offline"
	BackendGCS     = "gcs"
	BackendS3      = "s3"
	BackendBlob    = "blob"
)

// Encodings.
const (
	EncodingCSV    = "csv"
	EncodingNDJSON = "ndjson"
)

// Compressions.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PKGSYNC_"

// Config describes one source to sync.
type Config struct {
	// Backend is one of offline, gcs, s3 or blob.
	Backend string `yaml:"backend"`
	// Location is the mirror root directory (offline), the bucket name
	// (gcs, s3) or a bucket URL (blob).
	Location string `yaml:"location"`
	// Prefix is an optional key prefix inside the bucket.
	Prefix string `yaml:"prefix"`

	Version     string `yaml:"version"`
	Source      string `yaml:"source"`
	Encoding    string `yaml:"encoding"`
	Compression string `yaml:"compression"`

	// CSVDelimiter is a single character. Default ",".
	CSVDelimiter string `yaml:"csv_delimiter"`

	S3 S3Config `yaml:"s3"`

	// CheckpointFile is where the command line driver persists progress.
	CheckpointFile string `yaml:"checkpoint_file"`
}

// S3Config holds S3 specific settings.
type S3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend:        BackendOffline,
		Version:        "v1",
		Encoding:       EncodingCSV,
		Compression:    CompressionNone,
		CSVDelimiter:   ",",
		CheckpointFile: "pkgsync-checkpoint.json",
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from PKGSYNC_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for name, field := range c.envFields() {
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}
}

func (c *Config) envFields() map[string]*string {
	return map[string]*string{
		"BACKEND":         &c.Backend,
		"LOCATION":        &c.Location,
		"PREFIX":          &c.Prefix,
		"VERSION":         &c.Version,
		"SOURCE":          &c.Source,
		"ENCODING":        &c.Encoding,
		"COMPRESSION":     &c.Compression,
		"CSV_DELIMITER":   &c.CSVDelimiter,
		"S3_REGION":       &c.S3.Region,
		"S3_ENDPOINT":     &c.S3.Endpoint,
		"CHECKPOINT_FILE": &c.CheckpointFile,
	}
}

// Validate reports every problem found, joined, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.Backend {
	case BackendOffline, BackendGCS, BackendS3, BackendBlob:
	default:
		invalid("unknown backend %q", c.Backend)
	}
	if c.Location == "" {
		invalid("location is required")
	}
	if c.Version == "" {
		invalid("version is required")
	}
	if c.Source == "" {
		invalid("source is required")
	}
	if strings.Contains(c.Version, "/") || strings.Contains(c.Source, "/") {
		invalid("version and source must not contain '/'")
	}
	if _, err := c.Format(); err != nil {
		invalid("%v", err)
	}
	if _, err := c.Codec(); err != nil {
		invalid("%v", err)
	}
	if c.Backend != BackendS3 && (c.S3.Region != "" || c.S3.Endpoint != "") {
		invalid("s3 settings require backend %q", BackendS3)
	}

	return errors.Join(errs...)
}

// Format returns the line format selected by Encoding.
func (c *Config) Format() (format.Format, error) {
	switch c.Encoding {
	case EncodingCSV:
		comma, err := c.delimiter()
		if err != nil {
			return nil, err
		}
		return csvformat.New(csvformat.WithComma(comma)), nil
	case EncodingNDJSON:
		return ndjsonformat.New(), nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", c.Encoding)
	}
}

// Codec returns the compression codec selected by Compression.
func (c *Config) Codec() (codec.Codec, error) {
	switch c.Compression {
	case CompressionNone, "":
		return noopcodec.New(), nil
	case CompressionGzip:
		return gzipcodec.New(), nil
	case CompressionZstd:
		return zstdcodec.New(), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", c.Compression)
	}
}

func (c *Config) delimiter() (rune, error) {
	if c.CSVDelimiter == "" {
		return ',', nil
	}
	if utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		return 0, fmt.Errorf("csv_delimiter must be a single character, got %q", c.CSVDelimiter)
	}
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	switch r {
	case '"', '\r', '\n', utf8.RuneError:
		return 0, fmt.Errorf("csv_delimiter %q is not allowed", c.CSVDelimiter)
	}
	return r, nil
}
