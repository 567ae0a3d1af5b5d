// Package gcsconnector implements the cloud connector on Google Cloud Storage.
package gcsconnector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/datafile"
	"github.com/pkgmeta/pkgsync/internal/layout"
)

// Compile-time check that Connector implements connector.Connector.
var _ connector.Connector = (*Connector)(nil)

// bucket is the subset of a GCS bucket the connector needs.
type bucket interface {
	// names lists object names under prefix matching glob, in lexical order.
	names(ctx context.Context, prefix, glob string) iter.Seq2[string, error]
	// open returns a reader for the named object.
	open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Connector lists data files in a GCS bucket.
type Connector struct {
	connector.Base
	client *storage.Client
	bucket bucket
	prefix string
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

// New creates a new GCS connector using application default credentials.
// The bucket must already exist.
func New(ctx context.Context, bucketName string, cfg connector.Config, opts ...Option) (*Connector, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}

	c, err := newConnector(gcsBucket{h: client.Bucket(bucketName)}, cfg, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	c.client = client
	return c, nil
}

func newConnector(b bucket, cfg connector.Config, opts ...Option) (*Connector, error) {
	base, err := connector.NewBase("gcs", cfg)
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

// DataAfter pages through the objects under the source prefix and returns
// the files after cp.
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

// Close releases resources.
func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// list returns object names relative to the connector prefix.
func (c *Connector) list(ctx context.Context) ([]string, error) {
	l := c.Layout()
	prefix := c.prefix + l.Prefix()
	glob := prefix + "*/*" + l.Suffix()

	var keys []string
	for name, err := range c.bucket.names(ctx, prefix, glob) {
		if err != nil {
			return nil, fmt.Errorf("listing gs objects under %s: %w", prefix, err)
		}
		keys = append(keys, strings.TrimPrefix(name, c.prefix))
	}
	return keys, nil
}

func (c *Connector) opener(key string) datafile.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		r, err := c.bucket.open(ctx, c.prefix+key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) {
				return nil, fmt.Errorf("object %s no longer exists: %w", c.prefix+key, err)
			}
			return nil, fmt.Errorf("creating reader: %w", err)
		}
		return r, nil
	}
}

// gcsBucket adapts a storage.BucketHandle.
type gcsBucket struct {
	h *storage.BucketHandle
}

func (b gcsBucket) names(ctx context.Context, prefix, glob string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		q := &storage.Query{Prefix: prefix, MatchGlob: glob}
		if err := q.SetAttrSelection([]string{"Name"}); err != nil {
			yield("", err)
			return
		}

		it := b.h.Objects(ctx, q)
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(attrs.Name, nil) {
				return
			}
		}
	}
}

func (b gcsBucket) open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := b.h.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return r, nil
}
