package layout

import (
	"slices"
	"testing"
)

func TestCoordinate_Compare(t *testing.T) {
	tests := []struct {
		a, b Coordinate
		want int
	}{
		{Coordinate{1, 1}, Coordinate{1, 1}, 0},
		{Coordinate{1, 1}, Coordinate{1, 2}, -1},
		{Coordinate{1, 9}, Coordinate{2, 1}, -1},
		{Coordinate{2, 1}, Coordinate{1, 9}, 1},
		{Coordinate{10, 1}, Coordinate{9, 100}, 1},
	}

	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCoordinate_SortIsNumeric(t *testing.T) {
	coords := []Coordinate{{2, 1}, {1, 10}, {1, 2}, {10, 1}, {1, 1}}
	slices.SortFunc(coords, Coordinate.Compare)

	want := []Coordinate{{1, 1}, {1, 2}, {1, 10}, {2, 1}, {10, 1}}
	if !slices.Equal(coords, want) {
		t.Errorf("sorted = %v, want %v", coords, want)
	}
}

func TestCheckpoint(t *testing.T) {
	var empty Checkpoint
	if !empty.IsEmpty() {
		t.Error("zero Checkpoint should be empty")
	}
	if empty.Matches(Coordinate{}) {
		t.Error("empty checkpoint should not match the zero coordinate")
	}
	if got := empty.String(); got != "empty" {
		t.Errorf("String() = %q, want %q", got, "empty")
	}

	cp := At(1, 2)
	if cp.IsEmpty() {
		t.Error("At(1, 2) should not be empty")
	}
	if !cp.Matches(Coordinate{1, 2}) {
		t.Error("At(1, 2) should match 1/2")
	}
	if cp.Matches(Coordinate{1, 3}) {
		t.Error("At(1, 2) should not match 1/3")
	}
	if c, ok := cp.Coordinate(); !ok || c != (Coordinate{1, 2}) {
		t.Errorf("Coordinate() = %v, %v", c, ok)
	}
	if CheckpointOf(Coordinate{1, 2}) != cp {
		t.Error("CheckpointOf should equal At for the same coordinate")
	}
}

func TestLayout_Key(t *testing.T) {
	l := Layout{Version: "v1", Source: "npm", Extension: "csv"}

	if got, want := l.Prefix(), "v1/npm/"; got != want {
		t.Errorf("Prefix() = %q, want %q", got, want)
	}
	if got, want := l.Key(Coordinate{3, 7}), "v1/npm/3/7.csv"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
	if got, want := l.Name(Coordinate{3, 7}), "3/7.csv"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
}

func TestLayout_Parse(t *testing.T) {
	l := Layout{Version: "v1", Source: "npm", Extension: "ndjson"}

	tests := []struct {
		key    string
		want   Coordinate
		wantOK bool
	}{
		{"v1/npm/1/1.ndjson", Coordinate{1, 1}, true},
		{"v1/npm/12/0003.ndjson", Coordinate{12, 3}, true},
		{"v1/npm/1/1.csv", Coordinate{}, false},
		{"v1/pypi/1/1.ndjson", Coordinate{}, false},
		{"v2/npm/1/1.ndjson", Coordinate{}, false},
		{"v1/npm/1.ndjson", Coordinate{}, false},
		{"v1/npm/1/2/3.ndjson", Coordinate{}, false},
		{"v1/npm/a/1.ndjson", Coordinate{}, false},
		{"v1/npm/1/b.ndjson", Coordinate{}, false},
		{"v1/npm/-1/1.ndjson", Coordinate{}, false},
		{"v1/npm/+1/1.ndjson", Coordinate{}, false},
		{"v1/npm//1.ndjson", Coordinate{}, false},
		{"v1/npm/1/.ndjson", Coordinate{}, false},
		{"v1/npm/README.md", Coordinate{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := l.Parse(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestLayout_ParseCompressedExtension(t *testing.T) {
	l := Layout{Version: "v1", Source: "npm", Extension: "csv.zst"}

	got, ok := l.Parse("v1/npm/4/2.csv.zst")
	if !ok || got != (Coordinate{4, 2}) {
		t.Errorf("Parse() = %v, %v, want 4/2, true", got, ok)
	}

	if _, ok := l.Parse("v1/npm/4/2.csv"); ok {
		t.Error("uncompressed key should not match a compressed layout")
	}
}
