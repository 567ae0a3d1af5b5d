package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkgmeta/pkgsync/internal/layout"
)

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "npm.json")
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := st.Load(ctx); !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("Load() before Save error = %v, want ErrNoCheckpoint", err)
	}

	want := &State{
		Version:    "v1",
		Source:     "npm",
		Coordinate: layout.Coordinate{Sequence: 4, Chunk: 12},
		UpdatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Coordinate != want.Coordinate || got.Source != want.Source || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if !got.Checkpoint().Matches(layout.Coordinate{Sequence: 4, Chunk: 12}) {
		t.Errorf("Checkpoint() = %v", got.Checkpoint())
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after Save")
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	st, err := NewFileStore(filepath.Join(t.TempDir(), "cp.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	for _, c := range []layout.Coordinate{{Sequence: 1, Chunk: 1}, {Sequence: 1, Chunk: 2}} {
		if err := st.Save(ctx, &State{Version: "v1", Source: "npm", Coordinate: c}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Coordinate != (layout.Coordinate{Sequence: 1, Chunk: 2}) {
		t.Errorf("Coordinate = %v, want 1/2", got.Coordinate)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	st, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	_, err = st.Load(context.Background())
	if err == nil || errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestResume(t *testing.T) {
	ctx := context.Background()

	st, err := NewFileStore(filepath.Join(t.TempDir(), "cp.json"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	cp, err := Resume(ctx, st, "v1", "npm")
	if err != nil || !cp.IsEmpty() {
		t.Errorf("Resume(missing file) = %v, %v, want empty", cp, err)
	}

	if err := st.Save(ctx, &State{Version: "v1", Source: "npm", Coordinate: layout.Coordinate{Sequence: 2, Chunk: 3}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cp, err = Resume(ctx, st, "v1", "npm")
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if cp != layout.At(2, 3) {
		t.Errorf("Resume() = %v, want 2/3", cp)
	}

	if _, err := Resume(ctx, st, "v1", "pypi"); !errors.Is(err, ErrMismatch) {
		t.Errorf("Resume(other source) error = %v, want ErrMismatch", err)
	}
}
