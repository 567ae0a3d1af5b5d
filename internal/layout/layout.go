// Package layout defines data file coordinates, checkpoints and the key
// convention shared by every storage backend:
//
//	<version>/<source>/<sequence>/<chunk>.<ext>
package layout

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Coordinate identifies a data file's position in the total order.
// Files are ordered by sequence, then by chunk within a sequence.
type Coordinate struct {
	Sequence int64 `json:"sequence"`
	Chunk    int64 `json:"chunk"`
}

// Compare returns -1, 0 or +1 depending on whether c sorts before, equal to
// or after other.
func (c Coordinate) Compare(other Coordinate) int {
	if n := cmp.Compare(c.Sequence, other.Sequence); n != 0 {
		return n
	}
	return cmp.Compare(c.Chunk, other.Chunk)
}

// Less reports whether c sorts before other.
func (c Coordinate) Less(other Coordinate) bool {
	return c.Compare(other) < 0
}

// String returns "<sequence>/<chunk>".
func (c Coordinate) String() string {
	return fmt.Sprintf("%d/%d", c.Sequence, c.Chunk)
}

// Checkpoint is the last successfully processed coordinate.
// The zero value is empty and means "start from the beginning".
type Checkpoint struct {
	coord Coordinate
	set   bool
}

// At returns a checkpoint positioned at the given coordinate.
func At(sequence, chunk int64) Checkpoint {
	return Checkpoint{coord: Coordinate{Sequence: sequence, Chunk: chunk}, set: true}
}

// CheckpointOf returns a checkpoint positioned at c.
func CheckpointOf(c Coordinate) Checkpoint {
	return Checkpoint{coord: c, set: true}
}

// IsEmpty reports whether the checkpoint carries no coordinate.
func (cp Checkpoint) IsEmpty() bool {
	return !cp.set
}

// Coordinate returns the checkpoint's coordinate and whether it is set.
func (cp Checkpoint) Coordinate() (Coordinate, bool) {
	return cp.coord, cp.set
}

// Matches reports whether the checkpoint is set and positioned at c.
func (cp Checkpoint) Matches(c Coordinate) bool {
	return cp.set && cp.coord == c
}

// String returns "empty" or the coordinate.
func (cp Checkpoint) String() string {
	if !cp.set {
		return "empty"
	}
	return cp.coord.String()
}

// Layout describes where one source's data files live and how they are named.
type Layout struct {
	// Version is the file-naming version token, e.g. "v1".
	Version string
	// Source identifies the upstream source, e.g. "npm".
	Source string
	// Extension is the full file extension without the leading dot,
	// e.g. "csv" or "ndjson.zst".
	Extension string
}

// Prefix returns "<version>/<source>/" relative to the backend root.
func (l Layout) Prefix() string {
	return l.Version + "/" + l.Source + "/"
}

// Suffix returns ".<ext>".
func (l Layout) Suffix() string {
	return "." + l.Extension
}

// Key returns the relative key of the file at c.
func (l Layout) Key(c Coordinate) string {
	return l.Prefix() + l.Name(c)
}

// Name returns "<sequence>/<chunk>.<ext>", the key relative to Prefix.
func (l Layout) Name(c Coordinate) string {
	return fmt.Sprintf("%d/%d%s", c.Sequence, c.Chunk, l.Suffix())
}

// Parse extracts the coordinate from a key relative to the backend root.
// Keys that do not follow the convention report false.
func (l Layout) Parse(key string) (Coordinate, bool) {
	rest, ok := strings.CutPrefix(key, l.Prefix())
	if !ok {
		return Coordinate{}, false
	}
	return l.ParseName(rest)
}

// ParseName extracts the coordinate from "<sequence>/<chunk>.<ext>".
func (l Layout) ParseName(name string) (Coordinate, bool) {
	rest, ok := strings.CutSuffix(name, l.Suffix())
	if !ok {
		return Coordinate{}, false
	}

	seq, chunk, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(chunk, "/") {
		return Coordinate{}, false
	}

	s, err := parseComponent(seq)
	if err != nil {
		return Coordinate{}, false
	}
	c, err := parseComponent(chunk)
	if err != nil {
		return Coordinate{}, false
	}

	return Coordinate{Sequence: s, Chunk: c}, true
}

// parseComponent accepts non-negative decimal integers, zero padding included.
func parseComponent(s string) (int64, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(s, 10, 64)
}
