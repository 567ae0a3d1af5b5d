package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	data := []byte(`
backend: s3
location: metadata-exports
prefix: mirror/
version: v2
source: pypi
encoding: ndjson
compression: zstd
s3:
  region: eu-west-1
  endpoint: http://localhost:9000
checkpoint_file: /var/lib/pkgsync/pypi.json
`)

	cfg := Default()
	if err := Parse(data, &cfg); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := Config{
		Backend:        BackendS3,
		Location:       "metadata-exports",
		Prefix:         "mirror/",
		Version:        "v2",
		Source:         "pypi",
		Encoding:       EncodingNDJSON,
		Compression:    CompressionZstd,
		CSVDelimiter:   ",",
		S3:             S3Config{Region: "eu-west-1", Endpoint: "http://localhost:9000"},
		CheckpointFile: "/var/lib/pkgsync/pypi.json",
	}
	if cfg != want {
		t.Errorf("Parse() = %+v, want %+v", cfg, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParse_KeepsDefaults(t *testing.T) {
	cfg := Default()
	if err := Parse([]byte("source: npm\nlocation: /srv/mirror\n"), &cfg); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Backend != BackendOffline || cfg.Version != "v1" || cfg.Encoding != EncodingCSV {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg := Default()
	if err := Parse(nil, &cfg); err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Parse(nil) changed config: %+v", cfg)
	}
}

func TestParse_UnknownField(t *testing.T) {
	cfg := Default()
	if err := Parse([]byte("bucket: x\n"), &cfg); err == nil {
		t.Error("Parse() with unknown field should return error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PKGSYNC_SOURCE":        "maven",
		"PKGSYNC_ENCODING":      "ndjson",
		"PKGSYNC_CSV_DELIMITER": ";",
		"PKGSYNC_S3_REGION":     "us-east-2",
		"SOURCE":                "ignored",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Source = "npm"
	cfg.ApplyEnv(lookup)

	if cfg.Source != "maven" {
		t.Errorf("Source = %q, want maven", cfg.Source)
	}
	if cfg.Encoding != EncodingNDJSON {
		t.Errorf("Encoding = %q, want ndjson", cfg.Encoding)
	}
	if cfg.CSVDelimiter != ";" {
		t.Errorf("CSVDelimiter = %q, want ;", cfg.CSVDelimiter)
	}
	if cfg.S3.Region != "us-east-2" {
		t.Errorf("S3.Region = %q, want us-east-2", cfg.S3.Region)
	}
	if cfg.Backend != BackendOffline {
		t.Errorf("Backend = %q, want unchanged", cfg.Backend)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Location = "/srv/mirror"
		cfg.Source = "npm"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Backend = "ftp" }, true},
		{"missing location", func(c *Config) { c.Location = "" }, true},
		{"missing source", func(c *Config) { c.Source = "" }, true},
		{"missing version", func(c *Config) { c.Version = "" }, true},
		{"slash in source", func(c *Config) { c.Source = "npm/extra" }, true},
		{"unknown encoding", func(c *Config) { c.Encoding = "xml" }, true},
		{"unknown compression", func(c *Config) { c.Compression = "brotli" }, true},
		{"long delimiter", func(c *Config) { c.CSVDelimiter = "::" }, true},
		{"quote delimiter", func(c *Config) { c.CSVDelimiter = `"` }, true},
		{"tab delimiter", func(c *Config) { c.CSVDelimiter = "\t" }, false},
		{"s3 settings on offline", func(c *Config) { c.S3.Region = "us-east-1" }, true},
		{"s3 backend", func(c *Config) { c.Backend = BackendS3; c.S3.Region = "us-east-1" }, false},
		{"blob backend", func(c *Config) { c.Backend = BackendBlob; c.Location = "mem://" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Config{Backend: "ftp", Encoding: "xml", Compression: "none"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}

	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("Validate() error %T is not a joined error", err)
	}
	// backend, location, version, source, encoding
	if n := len(joined.Unwrap()); n != 5 {
		t.Errorf("got %d problems, want 5: %v", n, err)
	}
}

func TestFormatAndCodec(t *testing.T) {
	cfg := Default()
	cfg.Encoding = EncodingNDJSON
	cfg.Compression = CompressionGzip

	f, err := cfg.Format()
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if f.Extension() != "ndjson" {
		t.Errorf("Format().Extension() = %q", f.Extension())
	}

	c, err := cfg.Codec()
	if err != nil {
		t.Fatalf("Codec() error = %v", err)
	}
	if c.Extension() != "gz" {
		t.Errorf("Codec().Extension() = %q", c.Extension())
	}
}

func TestFormat_Delimiter(t *testing.T) {
	cfg := Default()
	cfg.CSVDelimiter = ";"

	f, err := cfg.Format()
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	rec, err := f.ParseLine([]byte("a;1.0;MIT"))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if len(rec.Columns) != 3 {
		t.Errorf("Columns = %q, want 3 fields", rec.Columns)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgsync.yaml")
	if err := os.WriteFile(path, []byte("location: /srv/mirror\nsource: npm\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PKGSYNC_SOURCE", "cargo")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "cargo" {
		t.Errorf("Source = %q, want env override cargo", cfg.Source)
	}
	if cfg.Location != "/srv/mirror" {
		t.Errorf("Location = %q", cfg.Location)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgsync.yaml")
	if err := os.WriteFile(path, []byte("backend: ftp\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with missing file should return error")
	}
}
