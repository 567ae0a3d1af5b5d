// Package diskconnector implements the offline connector over a local mirror
// of the data files.
package diskconnector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/datafile"
	"github.com/pkgmeta/pkgsync/internal/layout"
)

// Compile-time check that Connector implements connector.Connector.
var _ connector.Connector = (*Connector)(nil)

// Connector lists data files under a local root directory.
type Connector struct {
	connector.Base
	root string
	fsys fs.FS
}

// New creates a new offline connector rooted at the given directory.
// The directory must exist.
func New(root string, cfg connector.Config) (*Connector, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	base, err := connector.NewBase("disk", cfg)
	if err != nil {
		return nil, err
	}

	return &Connector{
		Base: base,
		root: root,
		fsys: os.DirFS(root),
	}, nil
}

// DataAfter lists <version>/<source>/*/*.<ext> under the root and returns
// the files after cp.
func (c *Connector) DataAfter(ctx context.Context, cp layout.Checkpoint) (iter.Seq[*datafile.File], error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	start := time.Now()
	keys, err := c.list()
	if err != nil {
		return nil, connector.Unavailable(err)
	}
	c.ObserveList(start)

	return c.Files(c.Collect(slices.Values(keys)), cp, c.opener), nil
}

// Close releases any resources held by the connector.
func (c *Connector) Close() error {
	return nil
}

// list returns slash-separated paths relative to the root, in lexical order.
// Any directory that cannot be read fails the listing, so a sequence is never
// dropped silently. A missing source directory is an empty listing.
func (c *Connector) list() ([]string, error) {
	// The root can disappear between New and a later sync attempt.
	if _, err := os.Stat(c.root); err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}

	l := c.Layout()
	dir := strings.TrimSuffix(l.Prefix(), "/")
	seqs, err := fs.ReadDir(c.fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var keys []string
	for _, seq := range seqs {
		if !seq.IsDir() {
			continue
		}
		seqDir := path.Join(dir, seq.Name())
		chunks, err := fs.ReadDir(c.fsys, seqDir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", seqDir, err)
		}
		for _, chunk := range chunks {
			if chunk.IsDir() || !strings.HasSuffix(chunk.Name(), l.Suffix()) {
				continue
			}
			keys = append(keys, path.Join(seqDir, chunk.Name()))
		}
	}
	return keys, nil
}

func (c *Connector) opener(key string) datafile.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return c.fsys.Open(key)
	}
}
