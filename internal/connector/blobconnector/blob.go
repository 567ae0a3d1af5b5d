// Package blobconnector implements the cloud connector on any gocloud.dev
// blob bucket: gs://, s3://, file:// and mem:// URLs.
package blobconnector

import (
	"context"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
	"gocloud.dev/gcerrors"

	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/datafile"
	"github.com/pkgmeta/pkgsync/internal/layout"
)

// Compile-time check that Connector implements connector.Connector.
var _ connector.Connector = (*Connector)(nil)

// Connector lists data files in a gocloud.dev bucket.
type Connector struct {
	connector.Base
	bucket *blob.Bucket
	prefix string
	owned  bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithPrefix sets a key prefix inside the bucket under which the
// <version>/<source>/ tree lives.
func WithPrefix(prefix string) Option {
	return func(c *Connector) {
		c.prefix = strings.TrimSuffix(prefix, "/")
		if c.prefix != "" {
			c.prefix += "/"
		}
	}
}

// Open opens the bucket at url, e.g. "gs://bucket" or "s3://bucket?region=us-east-1".
// The bucket is closed by Close.
func Open(ctx context.Context, url string, cfg connector.Config, opts ...Option) (*Connector, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", url, err)
	}

	c, err := New(b, cfg, opts...)
	if err != nil {
		b.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// New creates a connector over an already opened bucket.
// The caller keeps ownership of b.
func New(b *blob.Bucket, cfg connector.Config, opts ...Option) (*Connector, error) {
	base, err := connector.NewBase("blob", cfg)
	if err != nil {
		return nil, err
	}

	c := &Connector{
		Base:   base,
		bucket: b,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DataAfter lists the bucket under the source prefix and returns the files
// after cp.
func (c *Connector) DataAfter(ctx context.Context, cp layout.Checkpoint) (iter.Seq[*datafile.File], error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	start := time.Now()
	keys, err := c.list(ctx)
	if err != nil {
		return nil, connector.Unavailable(err)
	}
	c.ObserveList(start)

	return c.Files(c.Collect(slices.Values(keys)), cp, c.opener), nil
}

// Close closes the bucket if the connector opened it.
func (c *Connector) Close() error {
	if !c.owned {
		return nil
	}
	return c.bucket.Close()
}

// list returns keys relative to the connector prefix.
func (c *Connector) list(ctx context.Context) ([]string, error) {
	prefix := c.prefix + c.Layout().Prefix()
	it := c.bucket.List(&blob.ListOptions{Prefix: prefix})

	var keys []string
	for {
		obj, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, strings.TrimPrefix(obj.Key, c.prefix))
	}
	return keys, nil
}

func (c *Connector) opener(key string) datafile.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		r, err := c.bucket.NewReader(ctx, c.prefix+key, nil)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				return nil, fmt.Errorf("object %s no longer exists: %w", c.prefix+key, err)
			}
			return nil, fmt.Errorf("open object %s: %w", c.prefix+key, err)
		}
		return r, nil
	}
}
