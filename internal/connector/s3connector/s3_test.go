package s3connector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pkgmeta/pkgsync/internal/connector"
	"github.com/pkgmeta/pkgsync/internal/format/csvformat"
	"github.com/pkgmeta/pkgsync/internal/layout"
)

// fakeAPI serves a bucket from memory, pageSize keys per ListObjectsV2 page.
type fakeAPI struct {
	objects  map[string][]byte
	pageSize int
	listErr  error
	lists    int
	gets     []string
}

func (f *fakeAPI) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func csvConfig() connector.Config {
	return connector.Config{Version: "v1", Source: "npm", Format: csvformat.New()}
}

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
		{"a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := &Connector{}
			if err := WithPrefix(tt.input)(c); err != nil {
				t.Fatalf("WithPrefix() error = %v", err)
			}
			if c.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", c.prefix, tt.want)
			}
		})
	}
}

func TestOptions_RejectEmpty(t *testing.T) {
	c := &Connector{}
	if err := WithRegion("")(c); err == nil {
		t.Error("WithRegion(\"\") expected error")
	}
	if err := WithEndpoint("")(c); err == nil {
		t.Error("WithEndpoint(\"\") expected error")
	}
	if err := WithRegion("eu-west-1")(c); err != nil || c.region != "eu-west-1" {
		t.Errorf("WithRegion() = %v, region %q", err, c.region)
	}
	if err := WithEndpoint("http://localhost:9000")(c); err != nil || c.endpoint != "http://localhost:9000" {
		t.Errorf("WithEndpoint() = %v, endpoint %q", err, c.endpoint)
	}
}

func TestConnector_DataAfter_Paginated(t *testing.T) {
	api := &fakeAPI{pageSize: 2, objects: map[string][]byte{
		"data/v1/npm/1/1.csv":    []byte("a,1.0,MIT\n"),
		"data/v1/npm/1/2.csv":    []byte("b,2.0,Apache-2.0\n"),
		"data/v1/npm/1/10.csv":   []byte("c,3.0,ISC\n"),
		"data/v1/npm/2/1.csv":    []byte("d,4.0,MIT\n"),
		"data/v1/npm/index.html": nil,
	}}

	c, err := New(context.Background(), "mirror", csvConfig(), WithClient(api), WithPrefix("data"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	files, err := c.DataAfter(context.Background(), layout.At(1, 2))
	if err != nil {
		t.Fatalf("DataAfter() error = %v", err)
	}

	var got []string
	for f := range files {
		got = append(got, f.String())
	}

	want := []string{"1/10.csv", "2/1.csv"}
	if !slices.Equal(got, want) {
		t.Errorf("DataAfter() = %v, want %v", got, want)
	}
	if api.lists != 3 {
		t.Errorf("ListObjectsV2 calls = %d, want 3", api.lists)
	}
	if len(api.gets) != 0 {
		t.Errorf("listing fetched objects: %v", api.gets)
	}
}

func TestConnector_Records(t *testing.T) {
	api := &fakeAPI{pageSize: 1000, objects: map[string][]byte{
		"v1/npm/1/1.csv": []byte("a,1.0,MIT\nb,2.0,MIT\n"),
	}}
	c, err := New(context.Background(), "mirror", csvConfig(), WithClient(api))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	files, err := c.DataAfter(context.Background(), layout.Checkpoint{})
	if err != nil {
		t.Fatalf("DataAfter() error = %v", err)
	}

	var records int
	for f := range files {
		for _, err := range f.Records(context.Background()) {
			if err != nil {
				t.Fatalf("Records() error = %v", err)
			}
			records++
		}
	}
	if records != 2 {
		t.Errorf("got %d records, want 2", records)
	}
	if !slices.Equal(api.gets, []string{"v1/npm/1/1.csv"}) {
		t.Errorf("gets = %v", api.gets)
	}
}

func TestConnector_ListError(t *testing.T) {
	cause := errors.New("operation error S3: ListObjectsV2, https response error")
	c, err := New(context.Background(), "mirror", csvConfig(), WithClient(&fakeAPI{listErr: cause}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.DataAfter(context.Background(), layout.Checkpoint{})
	if !errors.Is(err, connector.ErrUnavailable) {
		t.Errorf("DataAfter() error = %v, want ErrUnavailable", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("DataAfter() error = %v, want cause wrapped", err)
	}
}

func TestConnector_MissingObject(t *testing.T) {
	api := &fakeAPI{pageSize: 10, objects: map[string][]byte{"v1/npm/1/1.csv": nil}}
	c, err := New(context.Background(), "mirror", csvConfig(), WithClient(api))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	files, err := c.DataAfter(context.Background(), layout.Checkpoint{})
	if err != nil {
		t.Fatalf("DataAfter() error = %v", err)
	}
	delete(api.objects, "v1/npm/1/1.csv")

	for f := range files {
		var gotErr error
		for _, err := range f.Records(context.Background()) {
			gotErr = err
		}
		var nsk *types.NoSuchKey
		if !errors.As(gotErr, &nsk) {
			t.Errorf("Records() error = %v, want NoSuchKey", gotErr)
		}
	}
}

func TestConnector_Close(t *testing.T) {
	c := &Connector{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
