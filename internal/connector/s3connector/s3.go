// Package s3connector implements the cloud connector on AWS S3 and
// S3-compatible services.
package s3connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/datafile"
	"github.com/pkgmeta/pkgsync/internal/layout"
)

// Compile-time check that Connector implements connector.Connector.
var _ connector.Connector = (*Connector)(nil)

// API is the subset of the S3 client the connector uses.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Compile-time check that the SDK client satisfies API.
var _ API = (*s3.Client)(nil)

// Connector lists data files in an S3 bucket.
type Connector struct {
	connector.Base
	client   API
	bucket   string
	prefix   string
	region   string
	endpoint string
}

// Option configures a Connector.
type Option func(*Connector) error

// WithPrefix sets a key prefix inside the bucket under which the
// <version>/<source>/ tree lives.
func WithPrefix(prefix string) Option {
	return func(c *Connector) error {
		c.prefix = strings.TrimSuffix(prefix, "/")
		if c.prefix != "" {
			c.prefix += "/"
		}
		return nil
	}
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *Connector) error {
		if region == "" {
			return errors.New("s3connector: empty region")
		}
		c.region = region
		return nil
	}
}

// WithEndpoint sets a custom endpoint (for S3-compatible services like MinIO).
// Path-style addressing is used with a custom endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Connector) error {
		if endpoint == "" {
			return errors.New("s3connector: empty endpoint")
		}
		c.endpoint = endpoint
		return nil
	}
}

// WithClient uses the given client instead of one built from the default
// AWS configuration.
func WithClient(api API) Option {
	return func(c *Connector) error {
		c.client = api
		return nil
	}
}

// New creates a new S3 connector.
// The bucket must already exist.
func New(ctx context.Context, bucketName string, cfg connector.Config, opts ...Option) (*Connector, error) {
	base, err := connector.NewBase("s3", cfg)
	if err != nil {
		return nil, err
	}

	c := &Connector{
		Base:   base,
		bucket: bucketName,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.client == nil {
		client, err := c.newClient(ctx)
		if err != nil {
			return nil, err
		}
		c.client = client
	}
	return c, nil
}

func (c *Connector) newClient(ctx context.Context) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if c.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(c.region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// DataAfter pages through ListObjectsV2 under the source prefix and returns
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
	// S3 client doesn't need explicit closing.
	return nil
}

// list returns object keys relative to the connector prefix.
func (c *Connector) list(ctx context.Context) ([]string, error) {
	prefix := c.prefix + c.Layout().Prefix()
	p := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", c.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), c.prefix))
		}
	}
	return keys, nil
}

func (c *Connector) opener(key string) datafile.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.prefix + key),
		})
		if err != nil {
			var nsk *types.NoSuchKey
			if errors.As(err, &nsk) {
				return nil, fmt.Errorf("object %s no longer exists: %w", c.prefix+key, err)
			}
			return nil, fmt.Errorf("getting object: %w", err)
		}
		return out.Body, nil
	}
}
