// Package checkpoint persists sync progress for the command line driver.
// Library callers usually keep their checkpoint next to the data they ingest
// and do not need this package.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkgmeta/pkgsync/internal/layout"
)

var (
	// ErrNoCheckpoint is returned when no checkpoint exists.
	ErrNoCheckpoint = errors.New("no checkpoint found")

	// ErrMismatch is returned when a stored checkpoint belongs to another
	// source or version.
	ErrMismatch = errors.New("checkpoint belongs to another source")
)

// State is the persisted form of a checkpoint.
type State struct {
	Version    string            `json:"version"`
	Source     string            `json:"source"`
	Coordinate layout.Coordinate `json:"coordinate"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Checkpoint returns the state's position.
func (s *State) Checkpoint() layout.Checkpoint {
	return layout.CheckpointOf(s.Coordinate)
}

// Store handles checkpoint persistence and retrieval.
type Store interface {
	// Load reads the current checkpoint, or returns ErrNoCheckpoint.
	Load(ctx context.Context) (*State, error)

	// Save persists the checkpoint.
	Save(ctx context.Context, s *State) error
}

// Resume loads the checkpoint for version and source from st.
// A missing checkpoint resumes from the beginning.
func Resume(ctx context.Context, st Store, version, source string) (layout.Checkpoint, error) {
	s, err := st.Load(ctx)
	if errors.Is(err, ErrNoCheckpoint) {
		return layout.Checkpoint{}, nil
	}
	if err != nil {
		return layout.Checkpoint{}, err
	}
	if s.Version != version || s.Source != source {
		return layout.Checkpoint{}, fmt.Errorf("%w: stored %s/%s, configured %s/%s",
			ErrMismatch, s.Version, s.Source, version, source)
	}
	return s.Checkpoint(), nil
}

// FileStore persists the checkpoint as a JSON file.
type FileStore struct {
	path string
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by the file at path.
// The parent directory is created if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the checkpoint file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the checkpoint from file.
func (f *FileStore) Load(ctx context.Context) (*State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse checkpoint file: %w", err)
	}
	return &s, nil
}

// Save persists the checkpoint to file.
// The write is atomic: readers see either the old or the new checkpoint.
func (f *FileStore) Save(ctx context.Context, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}
